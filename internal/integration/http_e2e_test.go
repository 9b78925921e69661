//go:build integration

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	httpserver "woodheaven_farms/internal/adapters/http_server"
	"woodheaven_farms/internal/adapters/localauth"
	"woodheaven_farms/internal/adapters/localfs"
	"woodheaven_farms/internal/app"
	"woodheaven_farms/internal/domain"
	mysqlrepo "woodheaven_farms/internal/storage/mysql"
)

// ---------- helpers ----------
func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=woodheaven",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/woodheaven?parseTime=true&multiStatements=true&charset=utf8mb4&loc=UTC",
		resource.GetPort("3306/tcp"))

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)
	return db
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) call(method, path string, in, out any) int {
	c.t.Helper()
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			c.t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &body)
	if err != nil {
		c.t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if out != nil && res.StatusCode < 300 {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s: %v", path, err)
		}
	}
	return res.StatusCode
}

// ---------- the test ----------
func TestHTTP_EndToEnd_MySQL(t *testing.T) {
	ctx := context.Background()
	db := startMySQL(t)
	repo := mysqlrepo.New(db)

	if err := app.Seed(ctx, repo); err != nil {
		t.Fatalf("seed: %v", err)
	}
	hash, err := localauth.HashPassword("admin123")
	if err != nil {
		t.Fatal(err)
	}
	auth, err := localauth.New(repo, "0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	authSvc := app.NewAuthService(auth, repo)
	if err := authSvc.AddAdmin(ctx, "admin@woodheaven.com", hash); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	objects, err := localfs.New(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatal(err)
	}

	site := app.NewSiteService(repo, objects, nil, 0)
	uploads := app.NewUploadQueue(repo, objects, nil, app.UploadQueueConfig{Concurrency: 2})
	defer uploads.Close(ctx)

	s := httpserver.New([]string{"*"})
	s.MountHandlers(&httpserver.Handlers{
		Site:           site,
		Content:        app.NewContentService(repo, nil, 0),
		Enquiries:      app.NewEnquiryService(repo, site, nil),
		Gallery:        app.NewGalleryService(repo, objects, nil, 0),
		Uploads:        uploads,
		Auth:           authSvc,
		MaxUploadBytes: 1 << 20,
	})
	ts := httptest.NewServer(s.Mux())
	defer ts.Close()
	c := &client{t: t, base: ts.URL}

	// public content comes from the seed
	var faqs []map[string]any
	if st := c.call(http.MethodGet, "/v1/content/faqs", nil, &faqs); st != http.StatusOK || len(faqs) != 4 {
		t.Fatalf("faqs: status %d, %d rows", st, len(faqs))
	}
	var amenities []domain.AmenityGroup
	c.call(http.MethodGet, "/v1/content/amenity_groups", nil, &amenities)
	if len(amenities) != 6 || len(amenities[0].Items) == 0 {
		t.Fatalf("amenities not decoded: %+v", amenities)
	}

	// a guest enquires
	var receipt app.StayReceipt
	st := c.call(http.MethodPost, "/v1/enquiries/stay?utm_source=e2e", map[string]any{
		"name": "Riya", "phone": "98100", "checkin": "2026-05-01", "checkout": "2026-05-03", "guests": 4,
	}, &receipt)
	if st != http.StatusCreated || receipt.Enquiry.ID == "" || receipt.Enquiry.Status != domain.StatusNew {
		t.Fatalf("submit: status %d, %+v", st, receipt)
	}

	// staff sign in and triage it
	var sess struct {
		AccessToken string `json:"access_token"`
	}
	if st := c.call(http.MethodPost, "/v1/admin/login", map[string]string{"email": "admin@woodheaven.com", "password": "admin123"}, &sess); st != http.StatusOK {
		t.Fatalf("login: %d", st)
	}
	c.token = sess.AccessToken

	var leads []map[string]any
	if st := c.call(http.MethodGet, "/v1/admin/leads/stays", nil, &leads); st != http.StatusOK || len(leads) != 1 {
		t.Fatalf("leads: status %d, %d rows", st, len(leads))
	}
	var updated map[string]any
	if st := c.call(http.MethodPatch, "/v1/admin/leads/stays/"+string(receipt.Enquiry.ID), map[string]string{"status": "booked"}, &updated); st != http.StatusOK || updated["status"] != "booked" {
		t.Fatalf("update lead: status %d, %+v", st, updated)
	}

	// settings round trip
	var saved domain.SiteSettings
	if st := c.call(http.MethodPut, "/v1/admin/settings", domain.SiteSettings{BrandName: "Wood Heaven Farms", WhatsAppNumber: "917000011111"}, &saved); st != http.StatusOK {
		t.Fatalf("save settings: %d", st)
	}
	var public map[string]any
	c.call(http.MethodGet, "/v1/site", nil, &public)
	if public["whatsapp"] != "917000011111" {
		t.Fatalf("site: %+v", public)
	}

	// gallery upload
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("files", "lawn-dusk.png")
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	_ = mw.WriteField("category", "Lawn")
	_ = mw.Close()
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/admin/gallery/batches", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var batch domain.UploadBatch
	_ = json.NewDecoder(res.Body).Decode(&batch)
	res.Body.Close()
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("batch: %d", res.StatusCode)
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if done, err := uploads.Wait(wctx, batch.ID); err != nil || done.Counts()[domain.JobCompleted] != 1 {
		t.Fatalf("batch did not complete: %v %+v", err, done)
	}

	var listing app.GalleryListing
	c.call(http.MethodGet, "/v1/gallery?category=Lawn", nil, &listing)
	if len(listing.Images) != 1 || listing.Images[0].Title != "lawn-dusk" {
		t.Fatalf("gallery: %+v", listing)
	}
}
