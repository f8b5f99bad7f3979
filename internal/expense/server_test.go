package expense

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sgrimes/expenselens/internal/category"
)

func multipartUpload(filename string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		db        *mockDB
		scanner   *mockScanner
		storage   *mockStorage
		auth      BasicAuth
		healthErr error
		server    *Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = &mockScanner{record: sampleRecord()}
		auth = BasicAuth{}
		healthErr = nil
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, scanner, storage, stubTime{now: time.Now()}, nil)
		health := func(ctx context.Context) error { return healthErr }
		server = NewServer(service, auth, health, nil)
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "secret"}
		})

		It("rejects requests without credentials", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/receipts", nil)
			rr := httptest.NewRecorder()
			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})

		It("accepts valid credentials", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/receipts", nil)
			req.SetBasicAuth("user", "secret")
			rr := httptest.NewRecorder()
			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusOK))
		})

		It("leaves the health endpoint open", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rr := httptest.NewRecorder()
			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /api/receipts", func() {
		It("processes an upload and returns the record", func() {
			body, contentType := multipartUpload("IMG_1234.png", []byte("png-bytes"))
			req := httptest.NewRequest(http.MethodPost, "/api/receipts", body)
			req.Header.Set("Content-Type", contentType)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusCreated))

			var rec Record
			Expect(json.Unmarshal(rr.Body.Bytes(), &rec)).To(Succeed())
			Expect(rec.Vendor.StoreName).To(Equal("Walmart"))
			Expect(db.records).To(HaveLen(1))
		})

		It("rejects requests without a file", func() {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			Expect(writer.Close()).To(Succeed())

			req := httptest.NewRequest(http.MethodPost, "/api/receipts", body)
			req.Header.Set("Content-Type", writer.FormDataContentType())
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
		})

		It("surfaces scan failures as client errors", func() {
			scanner.err = errors.New("no text recognized in image")
			body, contentType := multipartUpload("a.png", []byte("x"))
			req := httptest.NewRequest(http.MethodPost, "/api/receipts", body)
			req.Header.Set("Content-Type", contentType)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusBadRequest))

			var resp map[string]string
			Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["error"]).To(ContainSubstring("no text recognized"))
		})
	})

	Describe("GET /api/receipts", func() {
		It("returns an empty JSON array when nothing is stored", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/receipts", nil)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON("[]"))
		})
	})

	Describe("GET /api/receipts/{id}", func() {
		It("returns the record", func() {
			rec := sampleRecord()
			Expect(db.SaveRecord(rec)).To(Succeed())

			req := httptest.NewRequest(http.MethodGet, "/api/receipts/"+rec.ID.String(), nil)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusOK))
		})

		It("rejects malformed IDs", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/receipts/not-a-uuid", nil)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for an unknown ID", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/receipts/"+uuid.NewString(), nil)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /api/receipts/{id}/category", func() {
		It("reassigns the category", func() {
			rec := sampleRecord()
			Expect(db.SaveRecord(rec)).To(Succeed())

			body := bytes.NewBufferString(`{"category": "Travel"}`)
			req := httptest.NewRequest(http.MethodPost, "/api/receipts/"+rec.ID.String()+"/category", body)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusOK))

			stored, err := db.GetRecord(rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Category).To(Equal(category.Travel))
		})

		It("rejects labels outside the taxonomy", func() {
			rec := sampleRecord()
			Expect(db.SaveRecord(rec)).To(Succeed())

			body := bytes.NewBufferString(`{"category": "something else"}`)
			req := httptest.NewRequest(http.MethodPost, "/api/receipts/"+rec.ID.String()+"/category", body)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/receipts/{id}/review", func() {
		It("clears the review flag", func() {
			rec := sampleRecord()
			rec.NeedsReview = true
			Expect(db.SaveRecord(rec)).To(Succeed())

			req := httptest.NewRequest(http.MethodPost, "/api/receipts/"+rec.ID.String()+"/review", nil)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusOK))

			stored, err := db.GetRecord(rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.NeedsReview).To(BeFalse())
		})
	})

	Describe("POST /api/receipts/{id}/rescan", func() {
		It("re-runs the pipeline over the stored image", func() {
			rec := sampleRecord()
			Expect(db.SaveRecord(rec)).To(Succeed())
			storage.files[rec.ImageFile] = []byte("png-bytes")
			scanner.rescanRec = sampleRecord()

			req := httptest.NewRequest(http.MethodPost, "/api/receipts/"+rec.ID.String()+"/rescan", nil)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(scanner.rescans).To(Equal(1))
		})
	})

	Describe("GET /api/categories", func() {
		It("lists the full taxonomy", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusOK))

			var cats []string
			Expect(json.Unmarshal(rr.Body.Bytes(), &cats)).To(Succeed())
			Expect(cats).To(HaveLen(20))
			Expect(cats).To(ContainElement("Other Business"))
		})
	})

	Describe("GET /healthz", func() {
		It("reports ok when the backend probe passes", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusOK))
		})

		It("reports degraded when the backend probe fails", func() {
			healthErr = errors.New("connection refused")

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rr := httptest.NewRecorder()

			server.ServeHTTP(rr, req)
			Expect(rr.Code).To(Equal(http.StatusServiceUnavailable))
		})
	})
})
