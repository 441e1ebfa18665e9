package handlers_test

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"malu-taxi-api/config"
	"malu-taxi-api/gateway"
	"malu-taxi-api/handlers"
	"malu-taxi-api/models"
)

var vehicleFields = map[string]string{
	"plate": "abc123", "color": "red", "model": "Corolla", "year": "2020", "brand": "Toyota",
}

var idCardFiles = map[string]string{
	"idCardFront": "front.jpg", "idCardBack": "back.jpg",
}

// countUploads walks the configured upload dir and counts stored files
func countUploads(t *testing.T) int {
	t.Helper()
	n := 0
	filepath.Walk(handlers.Cfg.UploadDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestBecomeDriverHappyPath(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	srv := okScorer(t, `{"verdict":"probable_real","score":0.97}`)
	r := setupAPI(t, gw, srv.URL+"/verify")
	user := createUser(t, "dana", "100", models.RoleUser, true)

	body, ct := multipartBody(t, vehicleFields, idCardFiles)
	w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &user), ct, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	// Promotion is atomic: role flipped and exactly one profile under the
	// original id.
	var fresh models.User
	if err := config.DB.Preload("Driver").First(&fresh, user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if fresh.Role != models.RoleDriver || fresh.Driver == nil {
		t.Fatalf("user not promoted: role=%s driver=%v", fresh.Role, fresh.Driver)
	}
	if fresh.Driver.Vehicle.Plate != "ABC123" {
		t.Fatalf("plate = %q, expected uppercased", fresh.Driver.Vehicle.Plate)
	}
	if !fresh.Driver.DocumentsVerified {
		t.Fatal("expected probable_real verdict to verify documents")
	}
	if fresh.Driver.Verification.Status != models.VerificationProbableReal {
		t.Fatalf("verification status = %s", fresh.Driver.Verification.Status)
	}

	resp := decodeBody(t, w)
	if strings.Contains(w.Body.String(), "front_path") {
		t.Fatalf("document paths leaked in response: %v", resp)
	}
}

func TestBecomeDriverMissingFiles(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	r := setupAPI(t, gw, "http://unused")
	user := createUser(t, "dana", "100", models.RoleUser, true)

	body, ct := multipartBody(t, vehicleFields, map[string]string{"idCardFront": "front.jpg"})
	w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &user), ct, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if n := countUploads(t); n != 0 {
		t.Fatalf("expected uploads cleaned up, found %d", n)
	}
}

func TestBecomeDriverMissingVehicleFieldsCleansUploads(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	r := setupAPI(t, gw, "http://unused")
	user := createUser(t, "dana", "100", models.RoleUser, true)

	fields := map[string]string{"plate": "ABC123", "color": "red"}
	body, ct := multipartBody(t, fields, idCardFiles)
	w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &user), ct, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if n := countUploads(t); n != 0 {
		t.Fatalf("expected uploads cleaned up, found %d", n)
	}
}

func TestBecomeDriverInactiveUser(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	r := setupAPI(t, gw, "http://unused")
	user := createUser(t, "dana", "100", models.RoleUser, false)

	body, ct := multipartBody(t, vehicleFields, idCardFiles)
	w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &user), ct, body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
	if n := countUploads(t); n != 0 {
		t.Fatalf("expected uploads cleaned up, found %d", n)
	}

	// Nothing changed: still a plain user, no profile.
	var fresh models.User
	config.DB.Preload("Driver").First(&fresh, user.ID)
	if fresh.Role != models.RoleUser || fresh.Driver != nil {
		t.Fatalf("promotion side effects: role=%s driver=%v", fresh.Role, fresh.Driver)
	}
}

func TestBecomeDriverPlateConflict(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	srv := okScorer(t, `{"verdict":"manual_review","score":0.4}`)
	r := setupAPI(t, gw, srv.URL+"/verify")

	first := createUser(t, "first", "100", models.RoleUser, true)
	body, ct := multipartBody(t, vehicleFields, idCardFiles)
	if w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &first), ct, body); w.Code != http.StatusCreated {
		t.Fatalf("seed driver status = %d", w.Code)
	}
	uploadsAfterFirst := countUploads(t)

	second := createUser(t, "second", "200", models.RoleUser, true)
	body, ct = multipartBody(t, vehicleFields, idCardFiles)
	w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &second), ct, body)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if n := countUploads(t); n != uploadsAfterFirst {
		t.Fatalf("expected conflicting uploads cleaned up: %d vs %d", n, uploadsAfterFirst)
	}

	var fresh models.User
	config.DB.Preload("Driver").First(&fresh, second.ID)
	if fresh.Role != models.RoleUser || fresh.Driver != nil {
		t.Fatal("second user must not be promoted")
	}
}

func TestBecomeDriverConcurrentPlateConflict(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	srv := okScorer(t, `{"verdict":"manual_review","score":0.4}`)
	r := setupAPI(t, gw, srv.URL+"/verify")

	first := createUser(t, "first", "100", models.RoleUser, true)
	second := createUser(t, "second", "200", models.RoleUser, true)

	// Same plate from both; whoever loses the insert must get a conflict,
	// whether the plate pre-check caught it or the unique index did.
	type attempt struct {
		token string
		body  *bytes.Buffer
		ct    string
	}
	attempts := make([]attempt, 0, 2)
	for _, u := range []*models.User{&first, &second} {
		body, ct := multipartBody(t, vehicleFields, idCardFiles)
		attempts = append(attempts, attempt{token: tokenFor(t, u), body: body, ct: ct})
	}

	codes := make(chan int, 2)
	var wg sync.WaitGroup
	for _, a := range attempts {
		wg.Add(1)
		go func(a attempt) {
			defer wg.Done()
			codes <- doMultipart(r, http.MethodPost, "/api/become-driver", a.token, a.ct, a.body).Code
		}(a)
	}
	wg.Wait()
	close(codes)

	var got []int
	for code := range codes {
		got = append(got, code)
	}
	sort.Ints(got)
	if got[0] != http.StatusCreated || got[1] != http.StatusConflict {
		t.Fatalf("codes = %v, want exactly one 201 and one 409", got)
	}

	var count int64
	config.DB.Model(&models.DriverProfile{}).Where("vehicle_plate = ?", "ABC123").Count(&count)
	if count != 1 {
		t.Fatalf("expected a single profile for the plate, got %d", count)
	}
}

func TestBecomeDriverTwiceConflicts(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	srv := okScorer(t, `{"verdict":"manual_review"}`)
	r := setupAPI(t, gw, srv.URL+"/verify")
	user := createUser(t, "dana", "100", models.RoleUser, true)

	body, ct := multipartBody(t, vehicleFields, idCardFiles)
	if w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &user), ct, body); w.Code != http.StatusCreated {
		t.Fatalf("first promotion status = %d", w.Code)
	}

	user.Role = models.RoleDriver
	fields := map[string]string{
		"plate": "XYZ789", "color": "blue", "model": "Civic", "year": "2021", "brand": "Honda",
	}
	body, ct = multipartBody(t, fields, idCardFiles)
	w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &user), ct, body)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestBecomeDriverScorerDownStillRegisters(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	r := setupAPI(t, gw, "http://127.0.0.1:1/verify")
	user := createUser(t, "dana", "100", models.RoleUser, true)

	body, ct := multipartBody(t, vehicleFields, idCardFiles)
	w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &user), ct, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var fresh models.User
	config.DB.Preload("Driver").First(&fresh, user.ID)
	if fresh.Driver.Verification.Status != models.VerificationPending {
		t.Fatalf("verification status = %s", fresh.Driver.Verification.Status)
	}
	if fresh.Driver.DocumentsVerified {
		t.Fatal("expected documents not verified")
	}
}

func TestUpdateAvailability(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	srv := okScorer(t, `{"verdict":"probable_real","score":0.9}`)
	r := setupAPI(t, gw, srv.URL+"/verify")
	user := createUser(t, "dana", "100", models.RoleUser, true)

	body, ct := multipartBody(t, vehicleFields, idCardFiles)
	if w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &user), ct, body); w.Code != http.StatusCreated {
		t.Fatalf("promote status = %d", w.Code)
	}
	user.Role = models.RoleDriver

	w := doJSON(r, http.MethodPatch, "/api/driver/availability", tokenFor(t, &user),
		map[string]bool{"is_available": true})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var profile models.DriverProfile
	config.DB.Where("user_id = ?", user.ID).First(&profile)
	if !profile.IsAvailable {
		t.Fatal("expected driver available")
	}
}

func TestListAvailableDriversFiltersAndHidesDocuments(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	srv := okScorer(t, `{"verdict":"probable_real","score":0.9}`)
	r := setupAPI(t, gw, srv.URL+"/verify")

	ready := createUser(t, "ready", "100", models.RoleUser, true)
	body, ct := multipartBody(t, vehicleFields, idCardFiles)
	if w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &ready), ct, body); w.Code != http.StatusCreated {
		t.Fatalf("promote status = %d", w.Code)
	}
	ready.Role = models.RoleDriver
	doJSON(r, http.MethodPatch, "/api/driver/availability", tokenFor(t, &ready), map[string]bool{"is_available": true})

	// A verified but unavailable driver must not show up.
	idle := createUser(t, "idle", "200", models.RoleUser, true)
	fields := map[string]string{
		"plate": "XYZ789", "color": "blue", "model": "Civic", "year": "2021", "brand": "Honda",
	}
	body, ct = multipartBody(t, fields, idCardFiles)
	if w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &idle), ct, body); w.Code != http.StatusCreated {
		t.Fatalf("promote status = %d", w.Code)
	}

	w := doJSON(r, http.MethodGet, "/api/drivers/available", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["count"] != float64(1) {
		t.Fatalf("count = %v, body = %s", resp["count"], w.Body.String())
	}
	if strings.Contains(w.Body.String(), "idcard-") {
		t.Fatal("document paths leaked in listing")
	}
}

func TestGetDriverDocumentAccessControl(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	srv := okScorer(t, `{"verdict":"probable_real","score":0.9}`)
	r := setupAPI(t, gw, srv.URL+"/verify")

	driver := createUser(t, "dana", "100", models.RoleUser, true)
	body, ct := multipartBody(t, vehicleFields, idCardFiles)
	if w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &driver), ct, body); w.Code != http.StatusCreated {
		t.Fatalf("promote status = %d", w.Code)
	}
	driver.Role = models.RoleDriver

	stranger := createUser(t, "sneaky", "200", models.RoleUser, true)
	admin := createUser(t, "boss", "300", models.RoleAdmin, true)

	path := "/api/drivers/" + strconv.Itoa(int(driver.ID)) + "/document?side=front"

	if w := doJSON(r, http.MethodGet, path, tokenFor(t, &stranger), nil); w.Code != http.StatusForbidden {
		t.Fatalf("stranger status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, path, tokenFor(t, &driver), nil); w.Code != http.StatusOK {
		t.Fatalf("owner status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, path, tokenFor(t, &admin), nil); w.Code != http.StatusOK {
		t.Fatalf("admin status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/api/drivers/9999/document", tokenFor(t, &admin), nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing driver status = %d", w.Code)
	}

	// The id is compared numerically, so a zero-padded path still
	// resolves to the owner.
	padded := "/api/drivers/00" + strconv.Itoa(int(driver.ID)) + "/document?side=front"
	if w := doJSON(r, http.MethodGet, padded, tokenFor(t, &driver), nil); w.Code != http.StatusOK {
		t.Fatalf("zero-padded owner status = %d", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/api/drivers/abc/document", tokenFor(t, &admin), nil); w.Code != http.StatusNotFound {
		t.Fatalf("non-numeric id status = %d", w.Code)
	}
}

func TestGetDriverPublicSummary(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	srv := okScorer(t, `{"verdict":"manual_review","score":0.4}`)
	r := setupAPI(t, gw, srv.URL+"/verify")

	driver := createUser(t, "dana", "100", models.RoleUser, true)
	body, ct := multipartBody(t, vehicleFields, idCardFiles)
	if w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &driver), ct, body); w.Code != http.StatusCreated {
		t.Fatalf("promote status = %d", w.Code)
	}

	w := doJSON(r, http.MethodGet, "/api/drivers/"+strconv.Itoa(int(driver.ID)), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "idcard-") {
		t.Fatal("document paths leaked")
	}

	// Plain users are not drivers.
	plain := createUser(t, "walker", "200", models.RoleUser, true)
	if w := doJSON(r, http.MethodGet, "/api/drivers/"+strconv.Itoa(int(plain.ID)), "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("plain user status = %d", w.Code)
	}
}

func TestVerifyDocumentsRerunsScorer(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusConnected}
	srv := okScorer(t, `{"verdict":"probable_real","score":0.91}`)
	r := setupAPI(t, gw, srv.URL+"/verify")

	driver := createUser(t, "dana", "100", models.RoleUser, true)
	body, ct := multipartBody(t, vehicleFields, idCardFiles)
	if w := doMultipart(r, http.MethodPost, "/api/become-driver", tokenFor(t, &driver), ct, body); w.Code != http.StatusCreated {
		t.Fatalf("promote status = %d", w.Code)
	}
	driver.Role = models.RoleDriver

	files := map[string]string{
		"idCardFront": "front2.jpg", "idCardBack": "back2.jpg", "selfie": "selfie.jpg",
	}
	body, ct = multipartBody(t, nil, files)
	w := doMultipart(r, http.MethodPost, "/api/driver/verify-documents", tokenFor(t, &driver), ct, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["documents_verified"] != true {
		t.Fatalf("body = %s", w.Body.String())
	}
}
