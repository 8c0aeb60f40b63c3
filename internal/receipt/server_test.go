package receipt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-ledger/internal/auth"
	"github.com/zombor/receipt-ledger/internal/expense"
	"github.com/zombor/receipt-ledger/internal/ledger"
	"github.com/zombor/receipt-ledger/internal/remote"
)

var _ = Describe("Server", func() {
	var (
		db          *BoltDB
		store       *mockStorage
		issuer      *auth.Issuer
		service     *Service
		server      *Server
		basicAuth   BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newTestDB()
		store = newMockStorage()
		issuer = auth.NewIssuer([]byte("test-secret"), time.Hour)
		basicAuth = BasicAuth{Username: "alice", Password: "s3cret"}
	})

	JustBeforeEach(func() {
		ghttpServer = ghttp.NewServer()
		service = NewService(db, &mockScanner{draft: &expense.Draft{Vendor: expense.StringPtr("Cafe")}}, store, issuer,
			Config{PublicURL: ghttpServer.URL()})
		server = NewServerWithMux(service, issuer, basicAuth, http.NewServeMux())
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodOptions} {
			ghttpServer.RouteToHandler(method, regexp.MustCompile(`.*`), server.ServeHTTP)
		}
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	bearer := func(userID string) string {
		token, err := issuer.Issue(userID)
		Expect(err).NotTo(HaveOccurred())
		return "Bearer " + token.Value
	}

	invoke := func(authz, operation string, payload any) (*http.Response, remote.Envelope) {
		body, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		req, err := http.NewRequest(http.MethodPost, ghttpServer.URL()+"/api/invoke/"+operation, bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		var env remote.Envelope
		if resp.StatusCode == http.StatusOK {
			Expect(json.NewDecoder(resp.Body).Decode(&env)).To(Succeed())
		}
		return resp, env
	}

	Describe("health and CORS", func() {
		It("answers the health check", func() {
			resp, err := http.Get(ghttpServer.URL() + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		It("answers preflight requests without auth", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/invoke/list-expenses", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Headers")).To(ContainSubstring("Authorization"))
		})
	})

	Describe("POST /api/token", func() {
		post := func(user, pass string) *http.Response {
			req, err := http.NewRequest(http.MethodPost, ghttpServer.URL()+"/api/token", nil)
			Expect(err).NotTo(HaveOccurred())
			if user != "" {
				req.SetBasicAuth(user, pass)
			}
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		When("the credentials match", func() {
			It("issues a token for the user", func() {
				resp := post("alice", "s3cret")
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var token auth.Token
				Expect(json.NewDecoder(resp.Body).Decode(&token)).To(Succeed())
				Expect(token.UserID).To(Equal("alice"))
				userID, err := issuer.Verify(token.Value)
				Expect(err).NotTo(HaveOccurred())
				Expect(userID).To(Equal("alice"))
			})
		})

		When("the password is wrong", func() {
			It("returns 401", func() {
				resp := post("alice", "nope")
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			})
		})

		When("no credentials are sent", func() {
			It("returns 401", func() {
				resp := post("", "")
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			})
		})

		When("no credentials are configured", func() {
			BeforeEach(func() {
				basicAuth = BasicAuth{}
			})

			It("accepts any named user", func() {
				resp := post("bob", "anything")
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})
		})
	})

	Describe("POST /api/invoke/{operation}", func() {
		It("requires a bearer token", func() {
			resp, _ := invoke("", ledger.OpListExpenses, ledger.UserRequest{UserID: "alice"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("rejects a forged token", func() {
			resp, _ := invoke("Bearer not-a-jwt", ledger.OpListExpenses, ledger.UserRequest{UserID: "alice"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("runs the operation and wraps the result", func() {
			Expect(db.SaveExpense(&expense.Expense{ID: "e1", UserID: "alice", Amount: decimal.NewFromInt(3)})).To(Succeed())

			resp, env := invoke(bearer("alice"), ledger.OpListExpenses, ledger.UserRequest{UserID: "alice"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(env.StatusCode).To(Equal(http.StatusOK))

			var list ledger.ListResponse
			Expect(json.Unmarshal(env.Body, &list)).To(Succeed())
			Expect(list.Expenses).To(HaveLen(1))
			Expect(list.Expenses[0].ID).To(Equal("e1"))
		})

		It("forbids payloads for another user", func() {
			_, env := invoke(bearer("mallory"), ledger.OpListExpenses, ledger.UserRequest{UserID: "alice"})
			Expect(env.StatusCode).To(Equal(http.StatusForbidden))
		})

		It("forbids storage keys outside the user's prefix", func() {
			_, env := invoke(bearer("alice"), ledger.OpDeleteImage, ledger.ImageRequest{UserID: "alice", StorageKey: "receipts/bob/x.png"})
			Expect(env.StatusCode).To(Equal(http.StatusForbidden))
		})

		It("returns 404 for an unknown operation", func() {
			_, env := invoke(bearer("alice"), "launch-rockets", ledger.UserRequest{UserID: "alice"})
			Expect(env.StatusCode).To(Equal(http.StatusNotFound))
			_, err := env.Result("launch-rockets")
			Expect(err).To(MatchError(ContainSubstring("unknown operation")))
		})

		It("returns 400 for a malformed payload", func() {
			_, env := invoke(bearer("alice"), ledger.OpSaveExpense, "not an object")
			Expect(env.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for a missing expense", func() {
			_, env := invoke(bearer("alice"), ledger.OpDeleteExpense, ledger.DeleteExpenseRequest{UserID: "alice", ExpenseID: "nope"})
			Expect(env.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("returns 500 when the backend fails", func() {
			store.putErr = errors.New("bucket unreachable")
			_, env := invoke(bearer("alice"), ledger.OpStoreImage, ledger.StoreImageRequest{
				UserID:    "alice",
				ImageData: base64.StdEncoding.EncodeToString([]byte("img")),
				FileName:  "a.jpg",
			})
			Expect(env.StatusCode).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("GET /api/files/{key}", func() {
		const key = "receipts/alice/1_a.png"

		BeforeEach(func() {
			store.files[key] = []byte("png-bytes")
		})

		It("serves the file for a valid signature", func() {
			sig, _, err := issuer.SignKey(key, time.Minute)
			Expect(err).NotTo(HaveOccurred())

			resp, err := http.Get(ghttpServer.URL() + "/api/files/" + key + "?sig=" + sig)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("png-bytes"))
		})

		It("returns 403 without a valid signature", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/files/" + key + "?sig=bogus")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		})
	})

	Describe("through the ledger client", func() {
		It("stores, saves, lists and links an expense end to end", func() {
			ctx := context.Background()
			tokens := remote.NewTokenClient(ghttpServer.URL(), "alice", "s3cret", 5*time.Second)
			session := auth.NewSession(tokens)
			client := ledger.New(remote.NewHTTPInvoker(ghttpServer.URL(), session, 5*time.Second))

			key, err := client.StoreImage(ctx, "alice", base64.StdEncoding.EncodeToString([]byte("jpeg")), "coffee.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(HavePrefix("receipts/alice/"))

			draft, err := client.ExtractData(ctx, "alice", key)
			Expect(err).NotTo(HaveOccurred())
			Expect(*draft.Vendor).To(Equal("Cafe"))

			e, err := draft.ToExpense("alice", key)
			Expect(err).NotTo(HaveOccurred())
			saved, err := client.SaveExpense(ctx, e)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.ID).NotTo(BeEmpty())

			expenses, err := client.ListExpenses(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(expenses).To(HaveLen(1))

			link, err := client.DownloadLink(ctx, "alice", key)
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.HasPrefix(link.URL, ghttpServer.URL()+"/api/files/")).To(BeTrue())

			resp, err := http.Get(link.URL)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var remoteErr *remote.Error
			_, err = client.ListExpenses(ctx, "bob")
			Expect(errors.As(err, &remoteErr)).To(BeTrue())
			Expect(remoteErr.StatusCode).To(Equal(http.StatusForbidden))
		})
	})
})
