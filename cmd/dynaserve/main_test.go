package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/ajinocean/dynamo-release/src/kinetics"
)

// testRouter builds a router over a simulated, fully processed dataset.
func testRouter(t *testing.T) (*gin.Engine, *dataset.Dataset) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	d, err := dataset.Simulate(dataset.SimulateOptions{Cells: 120, Genes: 12, Seed: 3})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	mode, err := d.DetectMode()
	if err != nil {
		t.Fatalf("detect mode: %v", err)
	}
	if _, err := kinetics.SteadyStateFit(context.Background(), d, mode, kinetics.FitOptions{}); err != nil {
		t.Fatalf("steady-state fit: %v", err)
	}
	if err := kinetics.PCA(d, 5); err != nil {
		t.Fatalf("PCA: %v", err)
	}
	warmDerived(d)
	return buildRouter(d), d
}

func get(t *testing.T, router *gin.Engine, url string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	router.ServeHTTP(w, req)
	return w
}

// decodePNG fails the test unless the body is a valid PNG, returning its
// width for shape checks.
func decodePNG(t *testing.T, w *httptest.ResponseRecorder, url string) int {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("GET %s = %d, body %s", url, w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("GET %s content type = %q, want image/png", url, ct)
	}
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("GET %s: decode: %v", url, err)
	}
	return img.Bounds().Dx()
}

func TestHealthcheck(t *testing.T) {
	router, _ := testRouter(t)
	w := get(t, router, "/healthcheck")
	if w.Code != http.StatusOK {
		t.Fatalf("healthcheck = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", body["status"])
	}
}

func TestSummaryRoute(t *testing.T) {
	router, d := testRouter(t)
	w := get(t, router, "/api/summary")
	if w.Code != http.StatusOK {
		t.Fatalf("summary = %d, body %s", w.Code, w.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if int(body["cells"].(float64)) != d.NumCells() {
		t.Errorf("cells = %v, want %d", body["cells"], d.NumCells())
	}
	if int(body["genes"].(float64)) != d.NumGenes() {
		t.Errorf("genes = %v, want %d", body["genes"], d.NumGenes())
	}
	if body["has_gamma"] != true {
		t.Errorf("has_gamma = %v after fitting", body["has_gamma"])
	}
	if body["has_velocity"] != true {
		t.Errorf("has_velocity = %v after warmDerived", body["has_velocity"])
	}
	if _, ok := body["pca_components"]; !ok {
		t.Error("summary is missing pca_components after PCA")
	}
}

func TestPlotRoutes(t *testing.T) {
	router, d := testRouter(t)
	gene := d.Var.Index[0]

	for _, url := range []string{
		"/plots/fractions.png",
		"/plots/fractions.png?group=cluster&width=400&height=240",
		"/plots/variance.png",
		"/plots/feature_genes.png",
		"/plots/phase.png?genes=" + gene,
		"/plots/scatter.png",
		"/plots/scatter.png?type=expression&genes=" + gene + "&theme=viridis",
		"/plots/scatter.png?type=velocity&genes=" + gene,
		"/plots/scatter.png?type=phase&genes=" + gene,
	} {
		w := get(t, router, url)
		decodePNG(t, w, url)
	}
}

func TestPlotRouteSizing(t *testing.T) {
	router, _ := testRouter(t)
	url := "/plots/variance.png?width=640&height=360"
	w := get(t, router, url)
	if got := decodePNG(t, w, url); got != 640 {
		t.Errorf("width = %d, want 640", got)
	}
}

func TestPlotRouteErrors(t *testing.T) {
	router, d := testRouter(t)
	gene := d.Var.Index[0]

	cases := []struct {
		url  string
		want int
	}{
		{"/plots/phase.png", http.StatusBadRequest},                            // genes is required
		{"/plots/phase.png?genes=not_a_gene", http.StatusBadRequest},
		{"/plots/scatter.png?type=volcano", http.StatusBadRequest},             // unknown figure kind
		{"/plots/scatter.png?type=expression", http.StatusBadRequest},          // genes is required
		{"/plots/scatter.png?theme=nope", http.StatusBadRequest},               // unknown theme
		{"/plots/fractions.png?group=not_a_column", http.StatusBadRequest},
		{"/plots/phase.png?genes=" + gene + "&color=not_a_column", http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := get(t, router, tc.url)
		if w.Code != tc.want {
			t.Errorf("GET %s = %d, want %d (body %s)", tc.url, w.Code, tc.want, w.Body.String())
		}
		var body map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Errorf("GET %s: error body is not JSON: %v", tc.url, err)
			continue
		}
		if body["error"] == "" {
			t.Errorf("GET %s: empty error message", tc.url)
		}
	}
}

func TestVarianceRouteWithoutPCA(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d, err := dataset.Simulate(dataset.SimulateOptions{Cells: 40, Genes: 6, Seed: 9})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	router := buildRouter(d)
	w := get(t, router, "/plots/variance.png")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("variance without PCA = %d, want 400", w.Code)
	}
}

func TestIntQueryJunk(t *testing.T) {
	router, _ := testRouter(t)
	// Junk sizing parameters fall back to defaults instead of failing.
	url := "/plots/variance.png?width=banana&n_pcs=-2"
	w := get(t, router, url)
	decodePNG(t, w, url)
}
