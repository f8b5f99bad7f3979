package scanning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func envelopeBody(payload string) []byte {
	b, err := json.Marshal(map[string]any{"response": payload, "done": true})
	Expect(err).NotTo(HaveOccurred())
	return b
}

func chatBody(content string) []byte {
	b, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	Expect(err).NotTo(HaveOccurred())
	return b
}

var _ = Describe("Generate", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		client  *Generate
		image   []byte
	)

	BeforeEach(func() {
		image = []byte("fake-png-bytes")
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Write(envelopeBody(validPayload))
		}
	})

	JustBeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		client = NewGenerate(GenerateConfig{BaseURL: server.URL, Model: "llava"}, nil)
	})

	AfterEach(func() {
		server.Close()
	})

	It("posts the expected request shape", func() {
		var got generateRequest
		handler = func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/api/generate"))
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
			w.Write(envelopeBody(validPayload))
		}

		_, err := client.Extract(context.Background(), image, "TOTAL 45.67")
		Expect(err).NotTo(HaveOccurred())

		Expect(got.Model).To(Equal("llava"))
		Expect(got.Format).To(Equal("json"))
		Expect(got.Stream).To(BeFalse())
		Expect(got.Images).To(HaveLen(1))
		Expect(got.Prompt).To(ContainSubstring("TOTAL 45.67"))
	})

	It("decodes the structured result", func() {
		result, err := client.Extract(context.Background(), image, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Vendor.StoreName).To(Equal("Walmart"))
		Expect(result.Items).To(HaveLen(1))
	})

	When("the service returns a non-2xx status", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			}
		})

		It("reports a status failure", func() {
			_, err := client.Extract(context.Background(), image, "")
			extErr, ok := err.(*ExtractionError)
			Expect(ok).To(BeTrue())
			Expect(extErr.Kind).To(Equal(FailureStatus))
			Expect(extErr.Status).To(Equal(http.StatusNotFound))
			Expect(extErr.Retryable()).To(BeTrue())
		})
	})

	When("the response body is not an envelope", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html>oops</html>`))
			}
		})

		It("reports an envelope failure", func() {
			_, err := client.Extract(context.Background(), image, "")
			extErr, ok := err.(*ExtractionError)
			Expect(ok).To(BeTrue())
			Expect(extErr.Kind).To(Equal(FailureEnvelope))
		})
	})

	When("the inner payload violates the schema", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Write(envelopeBody(`{"receipt_type": "x"}`))
			}
		})

		It("reports a schema failure and keeps the payload", func() {
			_, err := client.Extract(context.Background(), image, "")
			extErr, ok := err.(*ExtractionError)
			Expect(ok).To(BeTrue())
			Expect(extErr.Kind).To(Equal(FailureSchema))
			Expect(extErr.Body).To(ContainSubstring("receipt_type"))
		})
	})

	When("the service is unreachable", func() {
		It("reports a network failure", func() {
			server.Close()
			_, err := client.Extract(context.Background(), image, "")
			extErr, ok := err.(*ExtractionError)
			Expect(ok).To(BeTrue())
			Expect(extErr.Kind).To(Equal(FailureNetwork))
		})
	})
})

var _ = Describe("Chat", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		client  *Chat
		image   []byte
	)

	BeforeEach(func() {
		image = []byte("fake-png-bytes")
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Write(chatBody(validPayload))
		}
	})

	JustBeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
		client = NewChat(ChatConfig{BaseURL: server.URL, APIKey: "sk-test", Model: "gpt-4o-mini"}, nil)
	})

	AfterEach(func() {
		server.Close()
	})

	It("posts the multi-part message shape with auth", func() {
		var got chatRequest
		handler = func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/chat/completions"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer sk-test"))
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
			w.Write(chatBody(validPayload))
		}

		_, err := client.Extract(context.Background(), image, "SHELL FUEL")
		Expect(err).NotTo(HaveOccurred())

		Expect(got.Model).To(Equal("gpt-4o-mini"))
		Expect(got.Messages).To(HaveLen(1))
		Expect(got.Messages[0].Content).To(HaveLen(2))
		Expect(got.Messages[0].Content[0].Type).To(Equal("text"))
		Expect(got.Messages[0].Content[0].Text).To(ContainSubstring("SHELL FUEL"))
		Expect(got.Messages[0].Content[1].Type).To(Equal("image_url"))
		Expect(got.Messages[0].Content[1].ImageURL.URL).To(HavePrefix("data:image/png;base64,"))
	})

	It("strips fences around the message content", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Write(chatBody("```json\n" + validPayload + "\n```"))
		}

		result, err := client.Extract(context.Background(), image, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Vendor.Name).To(Equal("Walmart Inc."))
	})

	When("the response carries no choices", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"choices": []}`))
			}
		})

		It("reports an envelope failure", func() {
			_, err := client.Extract(context.Background(), image, "")
			extErr, ok := err.(*ExtractionError)
			Expect(ok).To(BeTrue())
			Expect(extErr.Kind).To(Equal(FailureEnvelope))
		})
	})

	When("the service returns a non-2xx status", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			}
		})

		It("reports a status failure", func() {
			_, err := client.Extract(context.Background(), image, "")
			extErr, ok := err.(*ExtractionError)
			Expect(ok).To(BeTrue())
			Expect(extErr.Kind).To(Equal(FailureStatus))
			Expect(extErr.Status).To(Equal(http.StatusTooManyRequests))
		})
	})
})
