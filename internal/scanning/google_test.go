package scanning

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"google.golang.org/api/option"
)

var _ = Describe("GoogleVision", func() {
	var (
		server  *ghttp.Server
		scanner *GoogleVision
		result  *Result
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewGoogleVision(context.Background(), "", []string{"es"}, Normalizer{},
			option.WithEndpoint(server.URL()+"/"),
			option.WithoutAuthentication(),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		result, err = scanner.Scan(context.Background(), Image{Name: "factura.png", Data: testPNG(20, 20)})
	})

	When("text is detected", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/v1/images:annotate"),
				ghttp.RespondWith(http.StatusOK, `{
					"responses": [{
						"fullTextAnnotation": {
							"text": "TOTAL 30,00\n",
							"pages": [{"blocks": [{"paragraphs": [{"words": [
								{
									"confidence": 0.9,
									"boundingBox": {"vertices": [{"x": 10, "y": 100}, {"x": 60, "y": 100}, {"x": 60, "y": 120}, {"x": 10, "y": 120}]},
									"symbols": [{"text": "T"}, {"text": "O"}, {"text": "T"}, {"text": "A"}, {"text": "L"}]
								},
								{
									"confidence": 0.7,
									"boundingBox": {"vertices": [{"x": 200, "y": 102}, {"x": 250, "y": 102}, {"x": 250, "y": 121}, {"x": 200, "y": 121}]},
									"symbols": [{"text": "3"}, {"text": "0"}, {"text": ","}, {"text": "0"}, {"text": "0"}]
								}
							]}]}]}]
						}
					}]
				}`, http.Header{"Content-Type": []string{"application/json"}}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the full text", func() {
			Expect(result.Backend).To(Equal("google"))
			Expect(result.Text).To(Equal("TOTAL 30,00"))
		})

		It("assembles words from symbols with their boxes", func() {
			Expect(result.Words).To(Equal([]Word{
				{Text: "TOTAL", Left: 10, Top: 100, Width: 50, Height: 20, Confidence: 0.9},
				{Text: "30,00", Left: 200, Top: 102, Width: 50, Height: 19, Confidence: 0.7},
			}))
		})

		It("averages the word confidences", func() {
			Expect(result.Confidence).NotTo(BeNil())
			Expect(*result.Confidence).To(BeNumerically("~", 0.8, 1e-9))
		})
	})

	When("nothing is detected", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{"responses": [{}]}`,
				http.Header{"Content-Type": []string{"application/json"}}))
		})

		It("returns an empty result", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Text).To(BeEmpty())
			Expect(result.Words).To(BeEmpty())
			Expect(result.Confidence).To(BeNil())
		})
	})

	When("the image is rejected", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{"responses": [{"error": {"code": 3, "message": "Bad image data."}}]}`,
				http.Header{"Content-Type": []string{"application/json"}}))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("Bad image data.")))
		})
	})

	When("the API is unavailable", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusServiceUnavailable, `{"error": {"code": 503, "message": "unavailable"}}`))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("calling vision API")))
		})
	})
})

var _ = Describe("polyBounds", func() {
	It("returns zeros for a missing polygon", func() {
		l, t, r, b := polyBounds(nil)
		Expect([]int{l, t, r, b}).To(Equal([]int{0, 0, 0, 0}))
	})
})
