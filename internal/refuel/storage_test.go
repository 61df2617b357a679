package refuel

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename  string
			data      []byte
			savedPath string
			err       error
		)

		BeforeEach(func() {
			filename = "scan.jpg"
			data = []byte("image bytes")
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save(filename, data)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the correct path", func() {
				Expect(savedPath).To(Equal(filename))
			})

			It("should save the file to disk", func() {
				filePath := filepath.Join(tmpDir, filename)
				Expect(filePath).To(BeAnExistingFile())
			})
		})
	})

	Describe("Get", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				_, err := storage.Save("scan.jpg", []byte("image bytes"))
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the file data", func() {
				data, err := storage.Get("scan.jpg")
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(Equal([]byte("image bytes")))
			})
		})

		When("the file does not exist", func() {
			It("should return an error", func() {
				_, err := storage.Get("missing.jpg")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Delete", func() {
		When("the file exists", func() {
			BeforeEach(func() {
				_, err := storage.Save("scan.jpg", []byte("image bytes"))
				Expect(err).NotTo(HaveOccurred())
			})

			It("should remove the file", func() {
				Expect(storage.Delete("scan.jpg")).To(Succeed())
				Expect(filepath.Join(tmpDir, "scan.jpg")).NotTo(BeAnExistingFile())
			})
		})

		When("the file does not exist", func() {
			It("should return an error", func() {
				Expect(storage.Delete("missing.jpg")).NotTo(Succeed())
			})
		})
	})
})
