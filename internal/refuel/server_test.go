package refuel

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		recognizer  *mockRecognizer
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		recognizer = newMockRecognizer()
		service = NewService(db, recognizer, newMockStorage())
		auth = BasicAuth{}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleIndex", func() {
		It("should return the HTML interface", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Fuel Tracker"))
		})
	})

	Describe("handleHistory", func() {
		When("records exist", func() {
			BeforeEach(func() {
				db.records["a"] = &Record{ID: "a", Odometer: 100, FuelAmount: 4}
				db.records["b"] = &Record{ID: "b", Odometer: 250, FuelAmount: 5}
				db.records["c"] = &Record{ID: "c", Odometer: 400, FuelAmount: 5}
			})

			It("should return the derived history and stats", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/records")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var payload struct {
					History []*HistoryEntry `json:"history"`
					Stats   *Stats          `json:"stats"`
				}
				Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
				Expect(payload.History).To(HaveLen(3))
				Expect(payload.History[0].Odometer).To(Equal(400.0))
				Expect(payload.History[0].Mileage).To(Equal(30.0))
				Expect(payload.Stats).NotTo(BeNil())
				Expect(payload.Stats.TotalDistance).To(Equal(300.0))
			})

			It("should set Content-Type to application/json", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/records")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			})
		})

		When("no records exist", func() {
			It("should return an empty history and null stats", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/records")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(MatchJSON(`{"history": [], "stats": null}`))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("db closed")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/records")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("handleAddRecord", func() {
		When("the body is valid", func() {
			It("should create the record", func() {
				body := `{"odometer": 12500, "fuel_amount": 2.5, "price": 250.50, "station": "Shell"}`
				resp, err := http.Post(ghttpServer.URL()+"/api/records", "application/json", strings.NewReader(body))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var record Record
				Expect(json.NewDecoder(resp.Body).Decode(&record)).To(Succeed())
				Expect(record.ID).NotTo(BeEmpty())
				Expect(record.Odometer).To(Equal(12500.0))
				Expect(db.records).To(HaveLen(1))
			})
		})

		When("the body fails validation", func() {
			It("should return status Bad Request with the error", func() {
				body := `{"odometer": 12500, "fuel_amount": 0, "price": 250.50}`
				resp, err := http.Post(ghttpServer.URL()+"/api/records", "application/json", strings.NewReader(body))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var payload map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
				Expect(payload["error"]).To(ContainSubstring("fuel amount"))
			})
		})

		When("the body is not JSON", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/records", "application/json", strings.NewReader("not json"))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})
	})

	Describe("handleDeleteRecord", func() {
		BeforeEach(func() {
			db.records["a"] = &Record{ID: "a"}
		})

		When("the record exists", func() {
			It("should return status No Content", func() {
				req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/records/a", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
				resp.Body.Close()
				Expect(db.records).To(BeEmpty())
			})
		})

		When("the record does not exist", func() {
			It("should return status Not Found", func() {
				req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/records/missing", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleUploadScan", func() {
		uploadScan := func() *http.Response {
			var buf bytes.Buffer
			writer := multipart.NewWriter(&buf)
			part, err := writer.CreateFormFile("file", "meter.jpg")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("image-bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.Close()).To(Succeed())

			resp, err := http.Post(ghttpServer.URL()+"/api/scans", writer.FormDataContentType(), &buf)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		When("recognition succeeds", func() {
			It("should return the scan with ranked candidates", func() {
				resp := uploadScan()
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var scan Scan
				Expect(json.NewDecoder(resp.Body).Decode(&scan)).To(Succeed())
				Expect(scan.Candidates).To(Equal([]string{"12500", "250.50", "2.5"}))
			})
		})

		When("recognition fails", func() {
			BeforeEach(func() {
				recognizer.recognizeErr = errors.New("model unavailable")
			})

			It("should return status Bad Request with the error", func() {
				resp := uploadScan()
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var payload map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&payload)).To(Succeed())
				Expect(payload["error"]).To(ContainSubstring("model unavailable"))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				var buf bytes.Buffer
				writer := multipart.NewWriter(&buf)
				Expect(writer.Close()).To(Succeed())

				resp, err := http.Post(ghttpServer.URL()+"/api/scans", writer.FormDataContentType(), &buf)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})
	})

	Describe("handleListScans", func() {
		BeforeEach(func() {
			db.scans["s1"] = &Scan{ID: "s1", Candidates: []string{"12500"}}
		})

		It("should return all scans", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/scans")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var scans []*Scan
			Expect(json.NewDecoder(resp.Body).Decode(&scans)).To(Succeed())
			Expect(scans).To(HaveLen(1))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "secret"}
			server = NewServerWithMux(service, auth, http.NewServeMux())
			setupServer()
		})

		When("no credentials are supplied", func() {
			It("should return status Unauthorized", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/records")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})
		})

		When("valid credentials are supplied", func() {
			It("should return status OK", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/records", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:secret")))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})
		})
	})
})
