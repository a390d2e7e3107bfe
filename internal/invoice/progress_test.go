package invoice

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-extractor/internal/scanning"
)

var _ = Describe("ProgressFeed", func() {
	var feed *ProgressFeed

	BeforeEach(func() {
		feed = NewProgressFeed()
	})

	It("should remember the latest event", func() {
		feed.Report(scanning.Progress{RunID: "r", Percent: 10})
		feed.Report(scanning.Progress{RunID: "r", Percent: 40})
		Expect(feed.Latest().Percent).To(Equal(40))
	})

	It("should forget the latest event on Clear", func() {
		feed.Report(scanning.Progress{RunID: "r", Percent: 10})
		feed.Clear()
		Expect(feed.Latest()).To(Equal(scanning.Progress{}))
	})

	It("should deliver events to subscribers in order", func() {
		_, events, unsubscribe := feed.Subscribe()
		defer unsubscribe()

		feed.Report(scanning.Progress{Percent: 0})
		feed.Report(scanning.Progress{Percent: 10})
		feed.Report(scanning.Progress{Percent: 100})

		Expect(<-events).To(HaveField("Percent", 0))
		Expect(<-events).To(HaveField("Percent", 10))
		Expect(<-events).To(HaveField("Percent", 100))
	})

	It("should not block when a subscriber falls behind", func() {
		_, _, unsubscribe := feed.Subscribe()
		defer unsubscribe()

		for i := 0; i < subscriberBuffer*2; i++ {
			feed.Report(scanning.Progress{Percent: i})
		}
		Expect(feed.Latest().Percent).To(Equal(subscriberBuffer*2 - 1))
	})

	It("should close the channel on unsubscribe", func() {
		_, events, unsubscribe := feed.Subscribe()
		unsubscribe()
		unsubscribe()

		_, ok := <-events
		Expect(ok).To(BeFalse())
	})

	It("should return the latest event on subscribe without queueing it again", func() {
		feed.Report(scanning.Progress{RunID: "r", Percent: 40})

		latest, events, unsubscribe := feed.Subscribe()
		defer unsubscribe()
		Expect(latest.Percent).To(Equal(40))
		Consistently(events).ShouldNot(Receive())

		feed.Report(scanning.Progress{RunID: "r", Percent: 60})
		Expect(<-events).To(HaveField("Percent", 60))
		Consistently(events).ShouldNot(Receive())
	})
})
