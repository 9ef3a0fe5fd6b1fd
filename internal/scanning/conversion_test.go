package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// testPNG returns a PNG of the given size with a dark stripe across it
func testPNG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.White)
		}
		img.Set(x, height/2, color.Black)
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Normalizer", func() {
	var (
		normalizer Normalizer
		input      Image
		output     []byte
		err        error
	)

	BeforeEach(func() {
		normalizer = Normalizer{}
		input = Image{Name: "factura.png", Data: testPNG(40, 20)}
	})

	JustBeforeEach(func() {
		output, err = normalizer.Normalize(input)
	})

	decode := func() image.Image {
		img, format, decodeErr := image.Decode(bytes.NewReader(output))
		Expect(decodeErr).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))
		return img
	}

	When("the input is a PNG", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps the original size", func() {
			Expect(decode().Bounds().Dx()).To(Equal(40))
		})
	})

	When("the input is a JPEG", func() {
		BeforeEach(func() {
			img, _, decodeErr := image.Decode(bytes.NewReader(testPNG(30, 30)))
			Expect(decodeErr).NotTo(HaveOccurred())
			var buf bytes.Buffer
			Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())
			input = Image{Name: "factura.jpg", Data: buf.Bytes()}
		})

		It("converts it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(decode().Bounds().Dy()).To(Equal(30))
		})
	})

	When("a maximum dimension is set", func() {
		BeforeEach(func() {
			normalizer.MaxDimension = 10
		})

		It("fits the image inside it", func() {
			Expect(err).NotTo(HaveOccurred())
			bounds := decode().Bounds()
			Expect(bounds.Dx()).To(Equal(10))
			Expect(bounds.Dy()).To(Equal(5))
		})
	})

	When("the image is smaller than the maximum dimension", func() {
		BeforeEach(func() {
			normalizer.MaxDimension = 1000
		})

		It("does not upscale it", func() {
			Expect(decode().Bounds().Dx()).To(Equal(40))
		})
	})

	When("the file is empty", func() {
		BeforeEach(func() {
			input = Image{Name: "empty.png"}
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("empty file")))
		})
	})

	When("the file is not an image", func() {
		BeforeEach(func() {
			input = Image{Name: "notes.txt", Data: []byte("just some text, not an invoice")}
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
		})
	})
})

var _ = Describe("DetectContentType", func() {
	It("detects PNG", func() {
		Expect(DetectContentType(testPNG(2, 2))).To(Equal("image/png"))
	})

	It("detects PDF", func() {
		Expect(DetectContentType([]byte("%PDF-1.4\n%fake"))).To(Equal("application/pdf"))
	})

	It("drops MIME parameters", func() {
		Expect(DetectContentType([]byte("hello"))).To(Equal("text/plain"))
	})
})

var _ = Describe("isHEICFormat", func() {
	It("recognizes the heic brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		Expect(isHEICFormat(data)).To(BeTrue())
	})

	It("rejects other brands", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypisom")...)
		Expect(isHEICFormat(data)).To(BeFalse())
	})

	It("rejects short input", func() {
		Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
	})
})
