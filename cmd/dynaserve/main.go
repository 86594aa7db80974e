// Dynaserve exposes a processed dataset over HTTP: a JSON summary plus the
// diagnostic figures as PNG endpoints, so results can be checked from a
// browser or embedded in a notebook without installing anything.
//
// Design notes:
//   - The dataset is loaded once at startup; requests never touch disk.
//   - Derived columns (gene statistics, velocity) are backfilled up front so
//     request handlers render from effectively read-only data.
//   - Figure parameters arrive as query strings and map one-to-one onto the
//     plotting options; invalid values come back as a JSON error with a 400.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/ajinocean/dynamo-release/src/kinetics"
	"github.com/ajinocean/dynamo-release/src/plotting"
)

func main() {
	var file, addr, loglevel string
	flag.StringVar(&file, "file", "processed.json.gz", "Path to a processed dataset (.json or .json.gz)")
	flag.StringVar(&addr, "addr", ":8080", "Listen address")
	flag.StringVar(&loglevel, "loglevel", "info", "Log level: debug, info, warn, error")
	flag.Parse()
	dataset.SetLogLevel(loglevel)

	d, err := dataset.LoadProcessed(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", file, err)
		os.Exit(1)
	}
	warmDerived(d)
	fmt.Printf("[serve] %s: %d cells x %d genes, listening on %s\n",
		file, d.NumCells(), d.NumGenes(), addr)

	router := buildRouter(d)
	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

// warmDerived backfills whatever derived state the file is missing, so the
// figure endpoints never have to mutate the shared dataset mid-request.
func warmDerived(d *dataset.Dataset) {
	if !d.Var.HasDispersion() {
		if err := kinetics.GeneStats(d, ""); err != nil {
			dataset.Warnf("gene stats unavailable: %v", err)
		} else if err := kinetics.FitDispersionTrend(d); err != nil {
			dataset.Warnf("dispersion trend unavailable: %v", err)
		}
	}
	if d.Var.HasGamma() {
		if _, ok := d.Layer(dataset.LayerVelocityS); !ok {
			mode, err := d.DetectMode()
			if err == nil {
				err = kinetics.ComputeVelocity(d, mode)
			}
			if err != nil {
				dataset.Warnf("velocity unavailable: %v", err)
			}
		}
	}
}

func buildRouter(d *dataset.Dataset) *gin.Engine {
	router := gin.Default()
	router.Use(corsMiddleware())

	s := &plotServer{d: d}
	router.GET("/healthcheck", s.healthCheckHandler)
	router.GET("/api/summary", s.summaryHandler)
	router.GET("/plots/fractions.png", s.fractionsHandler)
	router.GET("/plots/variance.png", s.varianceHandler)
	router.GET("/plots/feature_genes.png", s.featureGenesHandler)
	router.GET("/plots/phase.png", s.phaseHandler)
	router.GET("/plots/scatter.png", s.scatterHandler)
	return router
}

type plotServer struct {
	d *dataset.Dataset
	// Renders can still backfill derived columns when warmDerived could not
	// (for example velocity on a file fitted after startup); serialize them.
	mu sync.Mutex
}

// Disable CORS policy
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}

func (s *plotServer) healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *plotServer) summaryHandler(c *gin.Context) {
	d := s.d
	mode, _ := d.DetectMode()
	resp := gin.H{
		"cells":          d.NumCells(),
		"genes":          d.NumGenes(),
		"mode":           string(mode),
		"layers":         d.LayerNames(),
		"obs_labels":     d.Obs.LabelColumns(),
		"obs_values":     d.Obs.ValueColumns(),
		"has_dispersion": d.Var.HasDispersion(),
		"has_gamma":      d.Var.HasGamma(),
	}
	if names := d.ObsmNames(); len(names) > 0 {
		resp["obsm"] = names
	}
	if len(d.ProteinNames) > 0 {
		resp["proteins"] = d.ProteinNames
	}
	if _, ok := d.Layer(dataset.LayerVelocityS); ok {
		resp["has_velocity"] = true
	}
	if n := len(d.ExplainedVarianceRatio); n > 0 {
		resp["pca_components"] = n
		resp["pca_elbow"] = kinetics.FindElbow(d.ExplainedVarianceRatio, 0, 0)
	}
	if d.Meta != nil {
		resp["run_tag"] = d.Meta.RunTag
		resp["generator"] = d.Meta.Generator
	}
	c.JSON(http.StatusOK, resp)
}

func (s *plotServer) fractionsHandler(c *gin.Context) {
	opts := plotting.FractionsOptions{
		Group:       c.Query("group"),
		Theme:       c.Query("theme"),
		Columns:     intQuery(c, "columns", 0),
		PanelWidth:  sizeQuery(c, "width"),
		PanelHeight: sizeQuery(c, "height"),
	}
	s.mu.Lock()
	img, err := plotting.Fractions(s.d, opts)
	s.mu.Unlock()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writePNG(c, img)
}

func (s *plotServer) varianceHandler(c *gin.Context) {
	opts := plotting.VarianceOptions{
		NPCs:   intQuery(c, "n_pcs", 0),
		Theme:  c.Query("theme"),
		Width:  sizeQuery(c, "width"),
		Height: sizeQuery(c, "height"),
	}
	s.mu.Lock()
	img, err := plotting.VarianceExplained(s.d, opts)
	s.mu.Unlock()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writePNG(c, img)
}

func (s *plotServer) featureGenesHandler(c *gin.Context) {
	opts := plotting.FeatureGenesOptions{
		Source: c.Query("source"),
		Theme:  c.Query("theme"),
		Width:  sizeQuery(c, "width"),
		Height: sizeQuery(c, "height"),
	}
	s.mu.Lock()
	img, err := plotting.FeatureGenes(s.d, opts)
	s.mu.Unlock()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writePNG(c, img)
}

func (s *plotServer) phaseHandler(c *gin.Context) {
	genes := splitList(c.Query("genes"))
	if len(genes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameter 'genes'"})
		return
	}
	opts := plotting.PhaseOptions{
		Basis:       c.Query("basis"),
		Color:       c.Query("color"),
		VelocityKey: c.Query("velocity"),
		Theme:       c.Query("theme"),
		Columns:     intQuery(c, "columns", 0),
		PanelSize:   sizeQuery(c, "panel"),
	}
	s.mu.Lock()
	img, err := plotting.PhasePortraits(s.d, genes, opts)
	s.mu.Unlock()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writePNG(c, img)
}

func (s *plotServer) scatterHandler(c *gin.Context) {
	opts := plotting.ScatterOptions{
		Type:        plotting.ScatterType(c.Query("type")),
		Basis:       c.Query("basis"),
		Color:       splitList(c.Query("color")),
		Genes:       splitList(c.Query("genes")),
		VelocityKey: c.Query("velocity"),
		Theme:       c.Query("theme"),
		Legend:      c.Query("legend"),
		Columns:     intQuery(c, "columns", 0),
		PanelWidth:  sizeQuery(c, "width"),
		PanelHeight: sizeQuery(c, "height"),
	}
	s.mu.Lock()
	img, err := plotting.Scatters(s.d, opts)
	s.mu.Unlock()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	writePNG(c, img)
}

func writePNG(c *gin.Context, img image.Image) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// intQuery parses an optional non-negative integer parameter, keeping the
// default on junk input.
func intQuery(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// sizeQuery parses a pixel dimension, capped so a stray query cannot ask
// for a wall-sized render.
func sizeQuery(c *gin.Context, name string) int {
	n := intQuery(c, name, 0)
	if n > 4000 {
		n = 4000
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
