package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	png "image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/ajinocean/dynamo-release/src/plotting"
)

const noSelection = "(none)"

type uiState struct {
	app      fyne.App
	window   fyne.Window
	filePath string

	data *dataset.Dataset
	mode dataset.Mode

	// figure options
	themeName   string // "" = per-figure defaults
	legend      string
	genesCSV    string
	group       string // obs column faceting the fraction violins
	colorColumn string // obs column coloring embedding/phase panels
	scatterType string
	columns     int
	showHints   bool

	// widgets
	fileLabel   *widget.Label
	genesEntry  *widget.Entry
	groupSelect *widget.Select
	colorSelect *widget.Select

	summaryRows [][2]string
	summary     *widget.Table

	fractionsImg *canvas.Image
	varianceImg  *canvas.Image
	featuresImg  *canvas.Image
	phaseImg     *canvas.Image
	scatterImg   *canvas.Image
}

// dark theme wrapper
type darkTheme struct{}

func (d *darkTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}
func (d *darkTheme) Font(style fyne.TextStyle) fyne.Resource { return theme.DefaultTheme().Font(style) }
func (d *darkTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}
func (d *darkTheme) Size(name fyne.ThemeSizeName) float32 { return theme.DefaultTheme().Size(name) }

func main() {
	var fileFlag, genesFlag, themeFlag, legendFlag, screensDir string
	var columnsFlag int
	var hintsFlag bool
	flag.StringVar(&fileFlag, "file", "", "Path to a processed dataset (.json or .json.gz)")
	flag.StringVar(&genesFlag, "genes", "", "Comma-separated genes for the phase and scatter figures (default: top dispersed)")
	flag.StringVar(&themeFlag, "theme", "", "Figure theme; empty keeps the per-figure defaults")
	flag.StringVar(&legendFlag, "legend", "on data", "Legend placement (on data|right|none)")
	flag.IntVar(&columnsFlag, "columns", 0, "Panels per row in figure grids (0 = automatic)")
	flag.BoolVar(&hintsFlag, "hints", false, "Draw interpretation hints under the figures")
	flag.StringVar(&screensDir, "screenshots", "", "Render the standard figure set into this directory and exit (headless, no window)")
	flag.Parse()

	if screensDir != "" {
		if err := RunScreenshotsMode(fileFlag, screensDir, genesFlag, themeFlag, columnsFlag, hintsFlag); err != nil {
			fmt.Fprintf(os.Stderr, "screenshots: %v\n", err)
			os.Exit(1)
		}
		return
	}

	a := app.NewWithID("com.dynamo.viewer")
	a.Settings().SetTheme(&darkTheme{})
	w := a.NewWindow("Dynamo Viewer")
	w.Resize(fyne.NewSize(1200, 860))

	state := &uiState{
		app:         a,
		window:      w,
		filePath:    fileFlag,
		themeName:   themeFlag,
		legend:      legendFlag,
		genesCSV:    genesFlag,
		scatterType: "embedding",
		columns:     columnsFlag,
		showHints:   hintsFlag,
	}
	// Load showHints early so the checkbox reflects it on creation.
	if !hintsFlag {
		state.showHints = a.Preferences().BoolWithFallback("showHints", false)
	}

	// top bar controls
	state.fileLabel = widget.NewLabel(truncatePath(state.filePath, 60))
	// Create selects without callbacks first; they are wired after the
	// canvases exist so early events cannot touch nil images.
	themeSelect := widget.NewSelect(append([]string{"auto"}, plotting.ThemeNames()...), nil)
	if state.themeName == "" {
		themeSelect.Selected = "auto"
	} else {
		themeSelect.Selected = state.themeName
	}
	legendSelect := widget.NewSelect([]string{plotting.LegendOnData, plotting.LegendRight, plotting.LegendNone}, nil)
	legendSelect.Selected = state.legend
	scatterSelect := widget.NewSelect([]string{"embedding", "expression", "velocity", "phase"}, nil)
	scatterSelect.Selected = state.scatterType
	hintsChk := widget.NewCheck("Hints", nil)
	hintsChk.SetChecked(state.showHints)

	state.genesEntry = widget.NewEntry()
	state.genesEntry.SetPlaceHolder("gene_0,gene_1")
	state.genesEntry.SetText(state.genesCSV)

	// Group and color selectors (options filled after first load)
	state.groupSelect = widget.NewSelect([]string{noSelection}, nil)
	state.groupSelect.Selected = noSelection
	state.colorSelect = widget.NewSelect([]string{noSelection}, nil)
	state.colorSelect.Selected = noSelection

	// Summary table (dataset overview)
	state.summary = widget.NewTable(
		func() (int, int) {
			rows := len(state.summaryRows)
			if rows < 1 {
				rows = 1
			}
			return rows, 2
		},
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, o fyne.CanvasObject) {
			lbl := o.(*widget.Label)
			if id.Row >= len(state.summaryRows) {
				lbl.SetText("")
				return
			}
			lbl.SetText(state.summaryRows[id.Row][id.Col])
		},
	)
	state.summary.SetColumnWidth(0, 190)
	state.summary.SetColumnWidth(1, 760)

	// figure canvases
	placeholder := func() *canvas.Image {
		c := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 100, 60)))
		c.FillMode = canvas.ImageFillContain
		c.SetMinSize(fyne.NewSize(900, 480))
		return c
	}
	state.fractionsImg = placeholder()
	state.varianceImg = placeholder()
	state.featuresImg = placeholder()
	state.phaseImg = placeholder()
	state.scatterImg = placeholder()

	top := container.NewHBox(
		widget.NewButton("Open…", func() { openFileDialog(state) }),
		widget.NewButton("Reload", func() { loadAll(state) }),
		widget.NewLabel("Theme:"), themeSelect,
		widget.NewLabel("Legend:"), legendSelect,
		widget.NewLabel("Genes:"), state.genesEntry,
		widget.NewLabel("Group:"), state.groupSelect,
		widget.NewLabel("Color:"), state.colorSelect,
		widget.NewLabel("Scatter:"), scatterSelect,
		hintsChk,
		widget.NewLabel("File:"), state.fileLabel,
	)

	scrolled := func(c *canvas.Image) *container.Scroll {
		s := container.NewVScroll(c)
		s.SetMinSize(fyne.NewSize(900, 640))
		return s
	}
	tabs := container.NewAppTabs(
		container.NewTabItem("Summary", state.summary),
		container.NewTabItem("Fractions", scrolled(state.fractionsImg)),
		container.NewTabItem("Variance", scrolled(state.varianceImg)),
		container.NewTabItem("Features", scrolled(state.featuresImg)),
		container.NewTabItem("Phase", scrolled(state.phaseImg)),
		container.NewTabItem("Scatter", scrolled(state.scatterImg)),
	)
	tabs.SetTabLocation(container.TabLocationTop)
	tabs.OnSelected = func(ti *container.TabItem) {
		if state.app != nil {
			state.app.Preferences().SetInt("selectedTabIndex", tabs.SelectedIndex())
		}
	}
	w.SetContent(container.NewBorder(top, nil, nil, nil, tabs))

	// Redraw figures on window resize so they scale with width.
	if w.Canvas() != nil {
		prevW := int(w.Canvas().Size().Width)
		done := make(chan struct{})
		w.SetOnClosed(func() {
			savePrefs(state)
			close(done)
		})
		go func() {
			t := time.NewTicker(300 * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-done:
					return
				case <-t.C:
					c := w.Canvas()
					if c == nil {
						continue
					}
					if curW := int(c.Size().Width); curW != prevW {
						prevW = curW
						fyne.Do(func() { redrawAll(state) })
					}
				}
			}
		}()
	}

	// Now that canvases are ready, wire the callbacks.
	themeSelect.OnChanged = func(v string) {
		if v == "auto" {
			state.themeName = ""
		} else {
			state.themeName = v
		}
		savePrefs(state)
		redrawAll(state)
	}
	legendSelect.OnChanged = func(v string) { state.legend = v; savePrefs(state); redrawAll(state) }
	scatterSelect.OnChanged = func(v string) { state.scatterType = v; savePrefs(state); redrawAll(state) }
	hintsChk.OnChanged = func(b bool) { state.showHints = b; savePrefs(state); redrawAll(state) }
	state.genesEntry.OnSubmitted = func(v string) {
		state.genesCSV = v
		fmt.Printf("[viewer] genes changed to: %q\n", v)
		savePrefs(state)
		redrawAll(state)
	}
	state.groupSelect.OnChanged = func(v string) {
		if v == noSelection {
			state.group = ""
		} else {
			state.group = v
		}
		savePrefs(state)
		redrawAll(state)
	}
	state.colorSelect.OnChanged = func(v string) {
		if v == noSelection {
			state.colorColumn = ""
		} else {
			state.colorColumn = v
		}
		savePrefs(state)
		redrawAll(state)
	}

	buildMenus(state, tabs)
	loadPrefs(state, themeSelect, legendSelect, scatterSelect, hintsChk, tabs)
	loadAll(state)

	w.ShowAndRun()
}

// menus and dialogs
func buildMenus(state *uiState, tabs *container.AppTabs) {
	if state == nil || state.window == nil || state.app == nil {
		return
	}
	var items []*fyne.MenuItem
	for _, f := range recentFiles(state) {
		f := f
		items = append(items, fyne.NewMenuItem(truncatePath(f, 60), func() {
			state.filePath = f
			state.fileLabel.SetText(truncatePath(state.filePath, 60))
			savePrefs(state)
			loadAll(state)
		}))
	}
	clearRecent := fyne.NewMenuItem("Clear Recent", func() { clearRecentFiles(state); buildMenus(state, tabs) })
	recentMenu := fyne.NewMenu("Open Recent", append(items, clearRecent)...)
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open…", func() { openFileDialog(state) }),
		fyne.NewMenuItem("Reload", func() { loadAll(state) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export Current Figure…", func() { exportCurrentFigure(state, tabs) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { state.window.Close() }),
	)
	state.window.SetMainMenu(fyne.NewMainMenu(fileMenu, recentMenu))

	canv := state.window.Canvas()
	if canv != nil {
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierSuper}, func(fyne.Shortcut) { openFileDialog(state) })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { openFileDialog(state) })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyR, Modifier: fyne.KeyModifierSuper}, func(fyne.Shortcut) { loadAll(state) })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyR, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { loadAll(state) })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyW, Modifier: fyne.KeyModifierSuper}, func(fyne.Shortcut) { state.window.Close() })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyW, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { state.window.Close() })
	}
}

func openFileDialog(state *uiState) {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		defer rc.Close()
		state.filePath = rc.URI().Path()
		state.fileLabel.SetText(truncatePath(state.filePath, 60))
		addRecentFile(state, state.filePath)
		savePrefs(state)
		loadAll(state)
	}, state.window)
	d.Show()
}

// figureCanvasForTab maps a tab index to its image canvas; nil for tabs
// without a figure.
func figureCanvasForTab(state *uiState, idx int) *canvas.Image {
	switch idx {
	case 1:
		return state.fractionsImg
	case 2:
		return state.varianceImg
	case 3:
		return state.featuresImg
	case 4:
		return state.phaseImg
	case 5:
		return state.scatterImg
	}
	return nil
}

func exportCurrentFigure(state *uiState, tabs *container.AppTabs) {
	img := figureCanvasForTab(state, tabs.SelectedIndex())
	if img == nil || img.Image == nil {
		dialog.ShowInformation("Export", "The current tab has no figure to export.", state.window)
		return
	}
	fs := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		defer wc.Close()
		_ = png.Encode(wc, img.Image)
	}, state.window)
	fs.SetFileName(strings.ToLower(tabs.Selected().Text) + ".png")
	fs.Show()
}

// load data and render
func loadAll(state *uiState) {
	if state.filePath == "" {
		if _, err := os.Stat("processed.json.gz"); err == nil {
			state.filePath = "processed.json.gz"
			if state.fileLabel != nil {
				state.fileLabel.SetText(truncatePath(state.filePath, 60))
			}
		} else {
			return
		}
	}
	d, err := dataset.LoadProcessed(state.filePath)
	if err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	state.data = d
	state.mode = ""
	if m, derr := d.DetectMode(); derr == nil {
		state.mode = m
	}
	if strings.TrimSpace(state.genesCSV) == "" {
		state.genesCSV = strings.Join(defaultGenes(d, 2), ",")
		if state.genesEntry != nil {
			state.genesEntry.SetText(state.genesCSV)
		}
	}
	fmt.Printf("[viewer] loaded %s: %d cells x %d genes (mode %s)\n",
		state.filePath, d.NumCells(), d.NumGenes(), state.mode)

	// Selector options follow the annotation columns of the loaded file.
	labelCols := d.Obs.LabelColumns()
	if state.groupSelect != nil {
		state.groupSelect.Options = append([]string{noSelection}, labelCols...)
		state.groupSelect.Selected = selectionOrNone(state.group, labelCols)
		state.groupSelect.Refresh()
	}
	if state.colorSelect != nil {
		colorCols := append(append([]string{}, labelCols...), d.Obs.ValueColumns()...)
		state.colorSelect.Options = append([]string{noSelection}, colorCols...)
		state.colorSelect.Selected = selectionOrNone(state.colorColumn, colorCols)
		state.colorSelect.Refresh()
	}

	refreshSummary(state)
	redrawAll(state)
}

// selectionOrNone keeps a previous selection only while the column still
// exists in the loaded dataset.
func selectionOrNone(sel string, options []string) string {
	for _, o := range options {
		if o == sel {
			return sel
		}
	}
	return noSelection
}

func refreshSummary(state *uiState) {
	d := state.data
	if d == nil {
		state.summaryRows = nil
		return
	}
	rows := [][2]string{
		{"Dataset", fmt.Sprintf("%d cells x %d genes", d.NumCells(), d.NumGenes())},
		{"Mode", string(state.mode)},
		{"Layers", strings.Join(d.LayerNames(), ", ")},
	}
	if names := d.ObsmNames(); len(names) > 0 {
		rows = append(rows, [2]string{"Obsm", strings.Join(names, ", ")})
	}
	if len(d.ProteinNames) > 0 {
		rows = append(rows, [2]string{"Proteins", strings.Join(d.ProteinNames, ", ")})
	}
	if cols := d.Obs.LabelColumns(); len(cols) > 0 {
		rows = append(rows, [2]string{"Obs labels", strings.Join(cols, ", ")})
	}
	if cols := d.Obs.ValueColumns(); len(cols) > 0 {
		rows = append(rows, [2]string{"Obs values", strings.Join(cols, ", ")})
	}
	var derived []string
	if d.Var.HasDispersion() {
		derived = append(derived, "gene stats")
	}
	if d.Var.HasGamma() {
		derived = append(derived, "gamma fit")
	}
	if d.Var.HasDelta() {
		derived = append(derived, "delta fit")
	}
	if _, ok := d.Layer(dataset.LayerVelocityS); ok {
		derived = append(derived, "velocity")
	}
	if len(d.ExplainedVarianceRatio) > 0 {
		derived = append(derived, fmt.Sprintf("PCA (%d components)", len(d.ExplainedVarianceRatio)))
	}
	if len(derived) > 0 {
		rows = append(rows, [2]string{"Derived", strings.Join(derived, ", ")})
	}
	if d.Meta != nil && d.Meta.RunTag != "" {
		rows = append(rows, [2]string{"Run tag", d.Meta.RunTag})
	}
	state.summaryRows = rows
	if state.summary != nil {
		state.summary.Refresh()
	}
}

func redrawAll(state *uiState) {
	if state.data == nil {
		return
	}
	update := func(c *canvas.Image, img image.Image) {
		if c == nil || img == nil {
			return
		}
		c.Image = img
		b := img.Bounds()
		// Reserve the rendered size, capped so oversized grids stay scrollable
		// rather than blowing up the window.
		w, h := b.Dx(), b.Dy()
		if w > 1600 {
			h = h * 1600 / w
			w = 1600
		}
		c.SetMinSize(fyne.NewSize(float32(w), float32(h)))
		c.Refresh()
	}
	update(state.fractionsImg, renderFractionsFigure(state))
	update(state.varianceImg, renderVarianceFigure(state))
	update(state.featuresImg, renderFeaturesFigure(state))
	update(state.phaseImg, renderPhaseFigure(state))
	update(state.scatterImg, renderScatterFigure(state))
}

// screenshotWidthOverride pins the headless figure width so tests can assert
// exact output sizes.
var screenshotWidthOverride int

// chartSize scales single-panel figures with the window width.
func chartSize(state *uiState) (int, int) {
	if state == nil || state.window == nil || state.window.Canvas() == nil {
		w := 1100
		if screenshotWidthOverride > 0 {
			w = screenshotWidthOverride
		}
		return w, clampHeight(int(float32(w) * 0.5))
	}
	sz := state.window.Canvas().Size()
	w := int(sz.Width*0.95) - 12
	if w < 800 {
		w = 800
	}
	return w, clampHeight(int(float32(w) * 0.5))
}

func clampHeight(h int) int {
	if h < 300 {
		return 300
	}
	if h > 640 {
		return 640
	}
	return h
}

// panelEdge sizes the square panels of the multi-panel figures from the
// figure width.
func panelEdge(state *uiState) int {
	w, _ := chartSize(state)
	edge := w / 3
	if edge < 260 {
		edge = 260
	}
	if edge > 420 {
		edge = 420
	}
	return edge
}

func renderFractionsFigure(state *uiState) image.Image {
	w, h := chartSize(state)
	if state.group != "" {
		w, h = panelEdge(state)*3/2, panelEdge(state)
	}
	img, err := plotting.Fractions(state.data, plotting.FractionsOptions{
		Mode: state.mode, Group: state.group, Theme: state.themeName,
		Columns: state.columns, PanelWidth: w, PanelHeight: h,
	})
	if err != nil {
		fmt.Printf("[viewer] fractions: %v\n", err)
		return nil
	}
	if state.showHints {
		img = plotting.DrawCaption(img, "Per-cell share of each transcript category; healthy runs keep every violin well off zero.")
	}
	return img
}

func renderVarianceFigure(state *uiState) image.Image {
	w, h := chartSize(state)
	img, err := plotting.VarianceExplained(state.data, plotting.VarianceOptions{
		Theme: state.themeName, Width: w, Height: h,
	})
	if err != nil {
		fmt.Printf("[viewer] variance: %v\n", err)
		return nil
	}
	if state.showHints {
		img = plotting.DrawCaption(img, "Cumulative PCA variance; the dashed line marks the elbow cutoff.")
	}
	return img
}

func renderFeaturesFigure(state *uiState) image.Image {
	w, h := chartSize(state)
	img, err := plotting.FeatureGenes(state.data, plotting.FeatureGenesOptions{
		Theme: state.themeName, Width: w, Height: h,
	})
	if err != nil {
		fmt.Printf("[viewer] feature genes: %v\n", err)
		return nil
	}
	if state.showHints {
		img = plotting.DrawCaption(img, "Mean vs dispersion per gene (log-log); red genes passed the selection.")
	}
	return img
}

func renderPhaseFigure(state *uiState) image.Image {
	genes := parseGenes(state.genesCSV)
	if len(genes) == 0 {
		genes = defaultGenes(state.data, 2)
	}
	img, err := plotting.PhasePortraits(state.data, genes, plotting.PhaseOptions{
		Mode: state.mode, Color: state.colorColumn, Theme: state.themeName,
		Columns: state.columns, PanelSize: panelEdge(state),
	})
	if err != nil {
		fmt.Printf("[viewer] phase: %v\n", err)
		return nil
	}
	if state.showHints {
		img = plotting.DrawCaption(img, "Phase plane with the steady-state line; cells above it are inducing, below repressing.")
	}
	return img
}

func renderScatterFigure(state *uiState) image.Image {
	opts := plotting.ScatterOptions{
		Type:       plotting.ScatterType(state.scatterType),
		Mode:       state.mode,
		Theme:      state.themeName,
		Legend:     state.legend,
		Genes:      parseGenes(state.genesCSV),
		Columns:    state.columns,
		PanelWidth: panelEdge(state), PanelHeight: panelEdge(state),
	}
	if state.colorColumn != "" {
		opts.Color = []string{state.colorColumn}
	}
	if opts.Type != plotting.ScatterEmbedding && len(opts.Genes) == 0 {
		opts.Genes = defaultGenes(state.data, 2)
	}
	img, err := plotting.Scatters(state.data, opts)
	if err != nil {
		fmt.Printf("[viewer] scatter: %v\n", err)
		return nil
	}
	if state.showHints {
		img = plotting.DrawCaption(img, scatterHint(opts.Type, len(opts.Color) > 0))
	}
	return img
}

func scatterHint(t plotting.ScatterType, colored bool) string {
	switch t {
	case plotting.ScatterExpression:
		return "Embedding colored by expression, saturated at the 99th percentile."
	case plotting.ScatterVelocity:
		return "Embedding colored by velocity; the colormap midpoint is zero."
	case plotting.ScatterPhase:
		if colored {
			return "Phase planes with steady-state lines, colored by the chosen annotation."
		}
		return "Phase planes with steady-state lines, colored by expression."
	}
	return "Low-dimensional embedding of all cells."
}

// parseGenes splits a comma-separated gene list, dropping blanks.
func parseGenes(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		if g := strings.TrimSpace(p); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// defaultGenes picks the most dispersed genes when the user named none, so
// a fresh window always shows something informative.
func defaultGenes(d *dataset.Dataset, n int) []string {
	type scored struct {
		name  string
		score float64
	}
	var ranked []scored
	if d.Var.HasDispersion() && len(d.Var.DispersionFitted) == len(d.Var.Index) {
		for j, name := range d.Var.Index {
			emp, fit := d.Var.DispersionEmpirical[j], d.Var.DispersionFitted[j]
			if emp > 0 && fit > 0 && !math.IsNaN(emp) && !math.IsNaN(fit) {
				ranked = append(ranked, scored{name, emp / fit})
			}
		}
		sort.Slice(ranked, func(i, k int) bool { return ranked[i].score > ranked[k].score })
	}
	out := make([]string, 0, n)
	for _, r := range ranked {
		if len(out) == n {
			break
		}
		out = append(out, r.name)
	}
	for j := 0; len(out) < n && j < len(d.Var.Index); j++ {
		name := d.Var.Index[j]
		dup := false
		for _, o := range out {
			if o == name {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, name)
		}
	}
	return out
}

// recent files helpers
func recentFiles(state *uiState) []string {
	prefs := state.app.Preferences()
	raw := prefs.StringWithFallback("recentFiles", "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func addRecentFile(state *uiState, path string) {
	prefs := state.app.Preferences()
	list := recentFiles(state)
	filtered := []string{path}
	for _, f := range list {
		if f != path && len(filtered) < 10 {
			filtered = append(filtered, f)
		}
	}
	prefs.SetString("recentFiles", strings.Join(filtered, "\n"))
}

func clearRecentFiles(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	state.app.Preferences().SetString("recentFiles", "")
}

// prefs
func savePrefs(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	prefs := state.app.Preferences()
	prefs.SetString("lastFile", state.filePath)
	prefs.SetString("theme", state.themeName)
	prefs.SetString("legend", state.legend)
	prefs.SetString("genes", state.genesCSV)
	prefs.SetString("group", state.group)
	prefs.SetString("colorColumn", state.colorColumn)
	prefs.SetString("scatterType", state.scatterType)
	prefs.SetBool("showHints", state.showHints)
}

func loadPrefs(state *uiState, themeSel, legendSel, scatterSel *widget.Select, hintsChk *widget.Check, tabs *container.AppTabs) {
	if state == nil || state.app == nil {
		return
	}
	prefs := state.app.Preferences()
	if f := prefs.StringWithFallback("lastFile", state.filePath); f != "" && state.filePath == "" {
		state.filePath = f
		if state.fileLabel != nil {
			state.fileLabel.SetText(truncatePath(state.filePath, 60))
		}
	}
	// Flags beat stored preferences; fall back to prefs only when unset.
	if state.themeName == "" {
		state.themeName = prefs.StringWithFallback("theme", "")
	}
	if themeSel != nil {
		if state.themeName == "" {
			themeSel.Selected = "auto"
		} else {
			themeSel.Selected = state.themeName
		}
	}
	state.legend = prefs.StringWithFallback("legend", state.legend)
	if legendSel != nil {
		legendSel.Selected = state.legend
	}
	if state.genesCSV == "" {
		state.genesCSV = prefs.StringWithFallback("genes", "")
		if state.genesEntry != nil {
			state.genesEntry.SetText(state.genesCSV)
		}
	}
	state.group = prefs.StringWithFallback("group", state.group)
	state.colorColumn = prefs.StringWithFallback("colorColumn", state.colorColumn)
	state.scatterType = prefs.StringWithFallback("scatterType", state.scatterType)
	if scatterSel != nil {
		scatterSel.Selected = state.scatterType
	}
	state.showHints = prefs.BoolWithFallback("showHints", state.showHints)
	if hintsChk != nil {
		hintsChk.SetChecked(state.showHints)
	}
	if tabs != nil {
		if idx := prefs.IntWithFallback("selectedTabIndex", 0); idx >= 0 && idx < len(tabs.Items) {
			tabs.SelectIndex(idx)
		}
	}
}

func truncatePath(p string, n int) string {
	if len(p) <= n {
		return p
	}
	base := filepath.Base(p)
	if len(base)+4 >= n {
		return "..." + base
	}
	dir := filepath.Dir(p)
	left := n - len(base) - 4
	if left <= 0 {
		return "..." + base
	}
	if len(dir) > left {
		dir = dir[:left]
	}
	return dir + "/..." + base
}
