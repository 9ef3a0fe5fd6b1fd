package scanning

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/otiai10/gosseract/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("wordsFromBoxes", func() {
	It("converts boxes and scales confidence to 0..1", func() {
		words := wordsFromBoxes([]gosseract.BoundingBox{
			{Box: image.Rect(10, 20, 60, 40), Word: "TOTAL", Confidence: 91},
			{Box: image.Rect(0, 0, 5, 5), Word: "  ", Confidence: 10},
		})
		Expect(words).To(Equal([]Word{
			{Text: "TOTAL", Left: 10, Top: 20, Width: 50, Height: 20, Confidence: 0.91},
		}))
	})
})

var _ = Describe("NewTesseract", func() {
	It("defaults to Spanish", func() {
		t, err := NewTesseract(TesseractOptions{}, Normalizer{})
		Expect(err).NotTo(HaveOccurred())
		Expect(t.opts.Languages).To(Equal([]string{"spa"}))
		Expect(t.Name()).To(Equal("tesseract"))
	})

	It("rejects an invalid page segmentation mode", func() {
		_, err := NewTesseract(TesseractOptions{PageSegMode: 42}, Normalizer{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Tesseract.Scan", func() {
	var (
		scanner *Tesseract
		release chan struct{}
	)

	BeforeEach(func() {
		var err error
		scanner, err = NewTesseract(TesseractOptions{}, Normalizer{})
		Expect(err).NotTo(HaveOccurred())
		release = make(chan struct{})
	})

	AfterEach(func() {
		close(release)
	})

	It("returns the recognized text and words", func() {
		scanner.recognize = func(data []byte) (string, []gosseract.BoundingBox, error) {
			return " TOTAL 12,50\n", []gosseract.BoundingBox{
				{Box: image.Rect(0, 0, 40, 10), Word: "TOTAL", Confidence: 80},
				{Box: image.Rect(50, 0, 90, 10), Word: "12,50", Confidence: 90},
			}, nil
		}
		result, err := scanner.Scan(context.Background(), Image{Name: "a.png", Data: testPNG(10, 10)})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Text).To(Equal("TOTAL 12,50"))
		Expect(result.Words).To(HaveLen(2))
		Expect(*result.Confidence).To(BeNumerically("~", 0.85, 1e-9))
	})

	It("returns the recognition error", func() {
		scanner.recognize = func(data []byte) (string, []gosseract.BoundingBox, error) {
			return "", nil, errors.New("set languages: missing spa.traineddata")
		}
		_, err := scanner.Scan(context.Background(), Image{Name: "a.png", Data: testPNG(10, 10)})
		Expect(err).To(MatchError(ContainSubstring("spa.traineddata")))
	})

	It("stops waiting when the context expires", func() {
		scanner.recognize = func(data []byte) (string, []gosseract.BoundingBox, error) {
			<-release
			return "", nil, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := scanner.Scan(ctx, Image{Name: "a.png", Data: testPNG(10, 10)})
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})
})

var _ = Describe("meanConfidence", func() {
	It("is nil without words", func() {
		Expect(meanConfidence(nil)).To(BeNil())
	})
})
