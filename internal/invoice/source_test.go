package invoice

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ListImages", func() {
	It("keeps supported extensions regardless of case, sorted", func() {
		files := newMockFiles("b.JPG", "a.png", "notes.txt", "scan.pdf", "photo.HEIC", "c.tiff")
		names, err := ListImages(files)
		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(Equal([]string{"a.png", "b.JPG", "c.tiff", "photo.HEIC", "scan.pdf"}))
	})

	It("returns the listing error", func() {
		files := newMockFiles()
		files.listErr = errors.New("permission denied")
		_, err := ListImages(files)
		Expect(err).To(MatchError(ContainSubstring("reading input directory")))
	})
})

var _ = Describe("LoadExpectations", func() {
	var (
		path string
		err  error
	)

	write := func(content string) {
		path = filepath.Join(GinkgoT().TempDir(), "expected.csv")
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
	}

	It("reads rows after an optional header", func() {
		write("source,expected\na.png,\"1.234,56\"\nb.png, 20.00\n")
		expectations, loadErr := LoadExpectations(path)
		Expect(loadErr).NotTo(HaveOccurred())
		Expect(expectations).To(HaveLen(2))
		Expect(expectations["a.png"].StringFixed(2)).To(Equal("1234.56"))
		Expect(expectations["b.png"].StringFixed(2)).To(Equal("20.00"))
	})

	It("reads files without a header", func() {
		write("a.png,10\n")
		expectations, loadErr := LoadExpectations(path)
		Expect(loadErr).NotTo(HaveOccurred())
		Expect(expectations["a.png"].StringFixed(2)).To(Equal("10.00"))
	})

	It("rejects an invalid amount", func() {
		write("source,expected\na.png,lots\n")
		_, err = LoadExpectations(path)
		Expect(err).To(MatchError(ContainSubstring("row 2")))
	})

	It("rejects short rows", func() {
		write("a.png\n")
		_, err = LoadExpectations(path)
		Expect(err).To(MatchError(ContainSubstring("want source and expected amount")))
	})

	It("fails for a missing file", func() {
		_, err = LoadExpectations(filepath.Join(GinkgoT().TempDir(), "missing.csv"))
		Expect(err).To(HaveOccurred())
	})
})
