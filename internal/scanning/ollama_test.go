package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

func samplePNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		scanner, err = NewOllama(server.URL(), "llava")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends the image on the user message and parses the reply", func() {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
			ghttp.VerifyContentType("application/json"),
			func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				Expect(err).NotTo(HaveOccurred())

				var req ollamaChatRequest
				Expect(json.Unmarshal(body, &req)).To(Succeed())
				Expect(req.Model).To(Equal("llava"))
				Expect(req.Format).To(Equal("json"))
				Expect(req.Messages).To(HaveLen(2))
				Expect(req.Messages[0].Images).To(BeEmpty())
				Expect(req.Messages[1].Images).To(HaveLen(1))
			},
			ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: `{"vendor":"Blue Bottle","amount":6.5,"category":"food","date":null}`},
				Done:    true,
			}),
		))

		draft, err := scanner.ScanReceipt(context.Background(), samplePNG(), "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(*draft.Vendor).To(Equal("Blue Bottle"))
		Expect(draft.Amount.StringFixed(2)).To(Equal("6.50"))
		Expect(*draft.Category).To(Equal("Food"))
		Expect(draft.Date).To(BeNil())
	})

	It("reports non-200 responses", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))

		_, err := scanner.ScanReceipt(context.Background(), samplePNG(), "image/png")
		Expect(err).To(MatchError(ContainSubstring("status 500")))
		Expect(err).To(MatchError(ContainSubstring("model not loaded")))
	})

	It("fails before calling the server when the image is unreadable", func() {
		_, err := scanner.ScanReceipt(context.Background(), []byte("garbage"), "image/jpeg")
		Expect(err).To(HaveOccurred())
		Expect(server.ReceivedRequests()).To(BeEmpty())
	})
})
