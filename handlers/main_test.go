package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"malu-taxi-api/config"
	"malu-taxi-api/gateway"
	"malu-taxi-api/handlers"
	"malu-taxi-api/logger"
	"malu-taxi-api/middleware"
	"malu-taxi-api/models"
	"malu-taxi-api/routes"
	"malu-taxi-api/social"
	"malu-taxi-api/verification"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type sentMessage struct {
	Phone string
	Text  string
}

// fakeGateway is a controllable Messenger for handler tests
type fakeGateway struct {
	mu      sync.Mutex
	status  gateway.Status
	sent    []sentMessage
	sendErr error
}

func (f *fakeGateway) Status() gateway.Status { return f.status }

func (f *fakeGateway) Send(phone, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{Phone: phone, Text: text})
	return nil
}

// setupAPI wires an in-memory database, a fake gateway and a scorer URL
// behind the real router.
func setupAPI(t *testing.T, gw *fakeGateway, scorerURL string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// A second pooled connection would get its own empty :memory: database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	config.DB = db

	cfg := config.Config{
		UploadDir:             t.TempDir(),
		CodeExpirationMinutes: 10,
		VerifyServiceURL:      scorerURL,
		VerifyTimeoutSeconds:  2,
	}
	scorer := verification.NewScorer(scorerURL, 2*time.Second)
	handlers.Setup(cfg, gw,
		verification.New(db, scorer, logger.New("verification-test")),
		social.New(db))

	r := gin.New()
	routes.SetupRoutes(r)
	return r
}

func createUser(t *testing.T, handle, phone string, role models.UserRole, active bool) models.User {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	u := models.User{
		Handle:       handle,
		Phone:        phone,
		PasswordHash: string(hash),
		Role:         role,
		Active:       active,
	}
	if err := config.DB.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := middleware.GenerateToken(u)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func doJSON(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// multipartBody builds a become-driver style form with two id-card files
func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for field, name := range files {
		part, err := form.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create file: %v", err)
		}
		if _, err := part.Write([]byte("fake image bytes")); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return &buf, form.FormDataContentType()
}

func doMultipart(r *gin.Engine, method, path, token, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func okScorer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}
