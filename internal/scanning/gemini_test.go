package scanning

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Gemini", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("requires an API key", func() {
		_, err := NewGemini(ctx, "", "")
		Expect(err).To(MatchError(ContainSubstring("api key is required")))
	})

	When("constructed with a key", func() {
		var g *Gemini

		BeforeEach(func() {
			var err error
			g, err = NewGemini(ctx, "test-key", "")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(g.Close)
		})

		It("defaults the model", func() {
			Expect(g.modelName).To(Equal("gemini-2.5-flash"))
		})

		It("sets the system prompt", func() {
			Expect(g.model.SystemInstruction).NotTo(BeNil())
			Expect(g.model.SystemInstruction.Parts).To(Equal([]genai.Part{genai.Text(systemPrompt)}))
		})

		It("rejects an empty image before calling the API", func() {
			_, err := g.ScanReceipt(ctx, nil, "image/png")
			Expect(err).To(MatchError(ContainSubstring("empty image")))
		})
	})

	It("keeps an explicit model name", func() {
		g, err := NewGemini(ctx, "test-key", "gemini-1.5-pro")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(g.Close)
		Expect(g.modelName).To(Equal("gemini-1.5-pro"))
	})
})
