package inmemory

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/recallhq/recall/pkg/vector"
)

func doc(id, userID, memType string, embedding []float32) vector.Document {
	return vector.Document{
		ID:        id,
		Content:   "content for " + id,
		Embedding: embedding,
		Metadata: map[string]string{
			"user_id": userID,
			"type":    memType,
		},
	}
}

var _ = Describe("Driver", func() {
	var (
		d   *Driver
		ctx context.Context
	)

	BeforeEach(func() {
		d = NewDriver()
		ctx = context.Background()
	})

	Describe("Query", func() {
		BeforeEach(func() {
			err := d.Add(ctx, []vector.Document{
				doc("exact", "u1", "preference", []float32{1, 0, 0}),
				doc("close", "u1", "preference", []float32{0.9, 0.1, 0}),
				doc("far", "u1", "preference", []float32{0, 0, 1}),
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("orders results by cosine distance", func() {
			results, err := d.Query(ctx, []float32{1, 0, 0}, 3, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].Document.ID).To(Equal("exact"))
			Expect(results[0].Distance).To(BeNumerically("~", 0, 0.0001))
			Expect(results[1].Document.ID).To(Equal("close"))
			Expect(results[2].Document.ID).To(Equal("far"))
		})

		It("truncates to topK", func() {
			results, err := d.Query(ctx, []float32{1, 0, 0}, 2, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		It("applies metadata filters", func() {
			err := d.Add(ctx, []vector.Document{
				doc("other-user", "u2", "preference", []float32{1, 0, 0}),
			})
			Expect(err).NotTo(HaveOccurred())

			results, err := d.Query(ctx, []float32{1, 0, 0}, 10, vector.Filter{UserID: "u2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Document.ID).To(Equal("other-user"))
		})

		It("treats a zero-magnitude embedding as maximally distant", func() {
			results, err := d.Query(ctx, []float32{0, 0, 0}, 3, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			for _, res := range results {
				Expect(res.Distance).To(Equal(float32(1)))
			}
		})
	})

	Describe("Add", func() {
		It("replaces a document with the same ID", func() {
			Expect(d.Add(ctx, []vector.Document{doc("a", "u1", "preference", []float32{1, 0, 0})})).To(Succeed())
			Expect(d.Add(ctx, []vector.Document{doc("a", "u1", "sentiment", []float32{0, 1, 0})})).To(Succeed())

			docs, err := d.List(ctx, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Metadata["type"]).To(Equal("sentiment"))
		})

		It("is isolated from later mutation of the caller's document", func() {
			original := doc("a", "u1", "preference", []float32{1, 0, 0})
			Expect(d.Add(ctx, []vector.Document{original})).To(Succeed())

			original.Metadata["user_id"] = "someone-else"
			original.Embedding[0] = 0

			docs, err := d.Get(ctx, []string{"a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs[0].Metadata["user_id"]).To(Equal("u1"))
			Expect(docs[0].Embedding[0]).To(Equal(float32(1)))
		})
	})

	Describe("Get", func() {
		It("skips unknown IDs", func() {
			Expect(d.Add(ctx, []vector.Document{doc("a", "u1", "preference", []float32{1, 0, 0})})).To(Succeed())

			docs, err := d.Get(ctx, []string{"a", "nope"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
		})
	})

	Describe("List", func() {
		It("returns matches in insertion order", func() {
			Expect(d.Add(ctx, []vector.Document{
				doc("first", "u1", "preference", []float32{1, 0, 0}),
				doc("second", "u1", "preference", []float32{0, 1, 0}),
				doc("third", "u2", "preference", []float32{0, 0, 1}),
			})).To(Succeed())

			docs, err := d.List(ctx, vector.Filter{UserID: "u1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
			Expect(docs[0].ID).To(Equal("first"))
			Expect(docs[1].ID).To(Equal("second"))
		})
	})

	Describe("DeleteWhere", func() {
		It("removes only matching documents and reports the count", func() {
			Expect(d.Add(ctx, []vector.Document{
				doc("a", "u1", "preference", []float32{1, 0, 0}),
				doc("b", "u1", "sentiment", []float32{0, 1, 0}),
				doc("c", "u2", "preference", []float32{0, 0, 1}),
			})).To(Succeed())

			n, err := d.DeleteWhere(ctx, vector.Filter{UserID: "u1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			count, err := d.Count(ctx, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})
	})

	Describe("Delete", func() {
		It("ignores unknown IDs", func() {
			Expect(d.Add(ctx, []vector.Document{doc("a", "u1", "preference", []float32{1, 0, 0})})).To(Succeed())
			Expect(d.Delete(ctx, []string{"a", "missing"})).To(Succeed())

			count, err := d.Count(ctx, vector.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})
})
