package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ankitagger/ankitagger/internal/anki"
	"github.com/ankitagger/ankitagger/internal/config"
	"github.com/ankitagger/ankitagger/internal/gemini"
	"github.com/ankitagger/ankitagger/internal/pdf"
	"github.com/ankitagger/ankitagger/internal/scanner"
	"github.com/ankitagger/ankitagger/internal/workflow"
	"github.com/ankitagger/ankitagger/pkg/logger"
	"github.com/ankitagger/ankitagger/pkg/prompts"
	"github.com/ankitagger/ankitagger/pkg/updater"
	"github.com/ankitagger/ankitagger/pkg/utils"
	"github.com/ankitagger/ankitagger/pkg/version"
)

type AnkiTaggerGUI struct {
	// Core components
	window        fyne.Window
	log           *logger.Logger
	cfg           *config.Config
	ankiService   *anki.Service
	updateChecker *updater.Checker
	mutex         sync.Mutex
	logFileName   string

	// Built on first use; needs the API key from config/env.
	runner *workflow.Runner

	// Export tab
	deckSelect       *widget.Select
	includeTagsEntry *widget.Entry
	excludeTagsEntry *widget.Entry

	// Process File tab
	fileEntry  *widget.Entry
	modeSelect *widget.Select
	tagCheck   *widget.Check

	// Tag TSV tab
	tagFileEntry   *widget.Entry
	tagOutEntry    *widget.Entry
	tagPromptEntry *widget.Entry

	// Workflow tab
	workflowDirEntry   *widget.Entry
	workflowModeSelect *widget.Select

	// Shared controls
	outputDirEntry *widget.Entry
	apiKeyEntry    *widget.Entry
	mediaCheck     *widget.Check
	verboseCheck   *widget.Check
	progress       *widget.ProgressBarInfinite
	status         *widget.Label
}

func NewAnkiTaggerGUI() *AnkiTaggerGUI {
	log, logFileName, err := setupLogging()
	if err != nil {
		log = logger.New(logger.WithPrefix("[ankitagger-gui] "))
		fmt.Printf("Warning: Failed to set up logging: %v\n", err)
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Warn("Could not load config.yaml, using defaults: %v", err)
		cfg, _ = config.Load("")
	}

	ankitaggerApp := app.New()
	window := ankitaggerApp.NewWindow("AnkiTagger")

	return &AnkiTaggerGUI{
		window:        window,
		log:           log,
		cfg:           cfg,
		ankiService:   anki.NewServiceWithURL(cfg.AnkiConnectURL, log),
		logFileName:   logFileName,
		updateChecker: updater.NewChecker(log),
	}
}

func setupLogging() (*logger.Logger, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	logsDir := filepath.Join(homeDir, "ankitagger-logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create logs directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logFileName := filepath.Join(logsDir, fmt.Sprintf("ankitagger_%s.log", timestamp))

	absLogPath, err := filepath.Abs(logFileName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	logFile, err := os.Create(absLogPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, logFile)
	log := logger.New(
		logger.WithPrefix("[ankitagger-gui] "),
		logger.WithOutput(multiWriter),
	)

	return log, absLogPath, nil
}

func (gui *AnkiTaggerGUI) setupUI() {
	mainMenu := fyne.NewMainMenu(
		fyne.NewMenu("Help",
			fyne.NewMenuItem("About", func() {
				dialog.ShowInformation(
					"About AnkiTagger",
					version.GetDetailedVersionInfo(),
					gui.window,
				)
			}),
		),
	)
	gui.window.SetMainMenu(mainMenu)

	// Shared output directory row
	gui.outputDirEntry = widget.NewEntry()
	if gui.cfg.OutputDir != "" {
		gui.outputDirEntry.SetText(gui.cfg.OutputDir)
	} else {
		gui.outputDirEntry.SetText(utils.GetDefaultOutputDir())
	}
	gui.outputDirEntry.SetPlaceHolder("Output Directory")
	browseOutputDirBtn := widget.NewButton("Browse", func() {
		gui.browseFolder(gui.outputDirEntry)
	})
	outputDirContainer := container.NewBorder(nil, nil, nil, browseOutputDirBtn, gui.outputDirEntry)

	gui.apiKeyEntry = widget.NewPasswordEntry()
	gui.apiKeyEntry.SetPlaceHolder("Gemini API key (blank: use config/GEMINI_API_KEY)")
	gui.apiKeyEntry.OnChanged = func(string) {
		// Force a rebuild so the next run picks up the new key.
		gui.runner = nil
	}

	gui.mediaCheck = widget.NewCheck("Save page images into the Anki media folder", func(checked bool) {
		gui.cfg.Workflow.SaveImagesToMedia = checked
	})
	gui.mediaCheck.SetChecked(gui.cfg.Workflow.SaveImagesToMedia)

	gui.verboseCheck = widget.NewCheck("Verbose Logging", func(checked bool) {
		gui.log.SetVerbose(checked)
	})

	gui.progress = widget.NewProgressBarInfinite()
	gui.progress.Hide()
	gui.status = widget.NewLabel("Ready.")

	tabs := container.NewAppTabs(
		container.NewTabItem("Export from Anki", gui.exportTab()),
		container.NewTabItem("Process File", gui.processTab()),
		container.NewTabItem("Tag TSV", gui.tagTab()),
		container.NewTabItem("Workflow", gui.workflowTab()),
	)

	content := container.NewBorder(
		nil,
		container.NewVBox(
			widget.NewSeparator(),
			outputDirContainer,
			gui.apiKeyEntry,
			gui.mediaCheck,
			gui.verboseCheck,
			gui.progress,
			gui.status,
		),
		nil, nil,
		tabs,
	)

	gui.window.SetContent(container.NewPadded(content))
	gui.window.Resize(fyne.NewSize(700, 600))
	gui.window.SetFixedSize(false)
}

func (gui *AnkiTaggerGUI) exportTab() fyne.CanvasObject {
	gui.deckSelect = widget.NewSelect(nil, nil)
	gui.deckSelect.PlaceHolder = "Connect to Anki to list decks"

	connectBtn := widget.NewButton("Connect to Anki", gui.handleConnect)
	connectBtn.Importance = widget.HighImportance

	gui.includeTagsEntry = widget.NewEntry()
	gui.includeTagsEntry.SetPlaceHolder("Include tags, comma separated ('untagged' matches notes with no tags)")
	gui.excludeTagsEntry = widget.NewEntry()
	gui.excludeTagsEntry.SetPlaceHolder("Exclude tags, comma separated")

	exportBtn := widget.NewButton("Export Deck to TSV", gui.handleExport)
	exportBtn.Importance = widget.HighImportance

	return container.NewVBox(
		widget.NewCard("", "", container.NewVBox(
			container.NewBorder(nil, nil, widget.NewLabel("Deck:"), connectBtn, gui.deckSelect),
			gui.includeTagsEntry,
			gui.excludeTagsEntry,
			exportBtn,
		)),
	)
}

func (gui *AnkiTaggerGUI) processTab() fyne.CanvasObject {
	gui.fileEntry = widget.NewEntry()
	gui.fileEntry.SetPlaceHolder("Select a PDF or text file")
	browseBtn := widget.NewButton("Browse", func() {
		gui.browseFile(gui.fileEntry)
	})

	gui.modeSelect = widget.NewSelect([]string{"Visual (PDF layout and images)", "Text (chunked analysis)"}, nil)
	gui.modeSelect.SetSelected("Visual (PDF layout and images)")

	gui.tagCheck = widget.NewCheck("Tag the extracted flashcards", nil)

	processBtn := widget.NewButton("Process File", gui.handleProcess)
	processBtn.Importance = widget.HighImportance

	return container.NewVBox(
		widget.NewCard("", "", container.NewVBox(
			container.NewBorder(nil, nil, nil, browseBtn, gui.fileEntry),
			gui.modeSelect,
			gui.tagCheck,
			processBtn,
		)),
	)
}

func (gui *AnkiTaggerGUI) tagTab() fyne.CanvasObject {
	gui.tagFileEntry = widget.NewEntry()
	gui.tagFileEntry.SetPlaceHolder("Select a TSV or JSON snapshot to tag")
	browseBtn := widget.NewButton("Browse", func() {
		gui.browseFile(gui.tagFileEntry)
	})

	gui.tagOutEntry = widget.NewEntry()
	gui.tagOutEntry.SetPlaceHolder("Output path (optional, defaults next to the input)")

	// Editable so the tag vocabulary inside the {...} blocks can be adapted
	// per run.
	gui.tagPromptEntry = widget.NewMultiLineEntry()
	gui.tagPromptEntry.SetText(prompts.BatchTagging)
	gui.tagPromptEntry.Wrapping = fyne.TextWrapWord

	resetPromptBtn := widget.NewButton("Reset Prompt", func() {
		gui.tagPromptEntry.SetText(prompts.BatchTagging)
	})

	tagBtn := widget.NewButton("Tag Flashcards", gui.handleTag)
	tagBtn.Importance = widget.HighImportance

	return container.NewBorder(
		widget.NewCard("", "", container.NewVBox(
			container.NewBorder(nil, nil, nil, browseBtn, gui.tagFileEntry),
			gui.tagOutEntry,
		)),
		container.NewVBox(resetPromptBtn, tagBtn),
		nil, nil,
		container.NewScroll(gui.tagPromptEntry),
	)
}

func (gui *AnkiTaggerGUI) workflowTab() fyne.CanvasObject {
	gui.workflowDirEntry = widget.NewEntry()
	gui.workflowDirEntry.SetPlaceHolder("Select a directory of input files")
	browseBtn := widget.NewButton("Browse", func() {
		gui.browseFolder(gui.workflowDirEntry)
	})

	gui.workflowModeSelect = widget.NewSelect([]string{"Visual (PDF layout and images)", "Text (chunked analysis)"}, nil)
	gui.workflowModeSelect.SetSelected("Visual (PDF layout and images)")

	runBtn := widget.NewButton("Run Full Workflow", gui.handleWorkflow)
	runBtn.Importance = widget.HighImportance

	return container.NewVBox(
		widget.NewCard("", "", container.NewVBox(
			container.NewBorder(nil, nil, nil, browseBtn, gui.workflowDirEntry),
			gui.workflowModeSelect,
			runBtn,
		)),
	)
}

func (gui *AnkiTaggerGUI) browseFolder(target *widget.Entry) {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil {
			dialog.ShowError(err, gui.window)
			return
		}
		if uri == nil {
			return
		}
		target.SetText(uri.Path())
	}, gui.window)
}

func (gui *AnkiTaggerGUI) browseFile(target *widget.Entry) {
	dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, gui.window)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()
		target.SetText(reader.URI().Path())
	}, gui.window)
}

func (gui *AnkiTaggerGUI) handleConnect() {
	if err := gui.ankiService.CheckConnection(); err != nil {
		dialog.ShowError(err, gui.window)
		return
	}
	decks, err := gui.ankiService.DeckNames()
	if err != nil {
		dialog.ShowError(err, gui.window)
		return
	}
	gui.deckSelect.Options = decks
	gui.deckSelect.Refresh()
	gui.updateStatus(fmt.Sprintf("Connected to Anki: %d deck(s)", len(decks)))
}

func (gui *AnkiTaggerGUI) handleExport() {
	deck := gui.deckSelect.Selected
	if deck == "" {
		dialog.ShowError(fmt.Errorf("please connect and select a deck"), gui.window)
		return
	}

	gui.progress.Show()
	gui.updateStatus("Exporting deck...")
	go gui.runExport(deck)
}

func (gui *AnkiTaggerGUI) runExport(deck string) {
	defer gui.finishProcessing()

	snapshot, err := gui.ankiService.LoadSnapshot()
	if err != nil {
		gui.showError(fmt.Sprintf("Error reading Anki state: %v", err))
		return
	}
	fields, err := gui.ankiService.FieldsForDeck(deck, snapshot)
	if err != nil {
		gui.showError(fmt.Sprintf("Error resolving deck fields: %v", err))
		return
	}

	outPath := filepath.Join(gui.outputDirEntry.Text, utils.SanitizeFilename(deck)+"_export.txt")
	count, err := gui.ankiService.ExportNotes(anki.ExportOptions{
		Deck:        deck,
		IncludeTags: splitTags(gui.includeTagsEntry.Text),
		ExcludeTags: splitTags(gui.excludeTagsEntry.Text),
		Fields:      fields,
	}, outPath)
	if err != nil {
		gui.showError(fmt.Sprintf("Export failed: %v", err))
		return
	}

	gui.updateStatus(fmt.Sprintf("Exported %d notes to %s", count, outPath))
	gui.showDone("Export Complete", fmt.Sprintf("Exported %d notes.\n\nOutput: %s", count, outPath))
}

func (gui *AnkiTaggerGUI) handleProcess() {
	if gui.fileEntry.Text == "" {
		dialog.ShowError(fmt.Errorf("please select an input file"), gui.window)
		return
	}
	if selectedMode(gui.modeSelect.Selected) == workflow.ModeVisual && !pdf.Available() {
		dialog.ShowError(fmt.Errorf("PDF support unavailable: the MuPDF library could not be loaded"), gui.window)
		return
	}
	if err := gui.ensureRunner(); err != nil {
		dialog.ShowError(err, gui.window)
		return
	}

	gui.progress.Show()
	gui.updateStatus("Processing file...")
	go gui.runProcess()
}

func (gui *AnkiTaggerGUI) runProcess() {
	defer gui.finishProcessing()

	res, err := gui.runner.ProcessFile(context.Background(), gui.fileEntry.Text, workflow.Options{
		Mode:        selectedMode(gui.modeSelect.Selected),
		OutputDir:   gui.outputDirEntry.Text,
		SkipTagging: !gui.tagCheck.Checked,
		Progress: func(done, total int) {
			gui.updateStatus(fmt.Sprintf("Tagging flashcards... %d/%d", done, total))
		},
	})
	if err != nil {
		gui.showError(fmt.Sprintf("Processing failed: %v", err))
		return
	}

	message := fmt.Sprintf("Extracted %d flashcards.", res.Records)
	if res.Output != "" {
		message += fmt.Sprintf("\n\nTagged output: %s", res.Output)
	} else {
		message += fmt.Sprintf("\n\nIntermediate files are in: %s", gui.outputDirEntry.Text)
	}
	gui.updateStatus("Processing complete.")
	gui.showDone("Processing Complete", message)
}

func (gui *AnkiTaggerGUI) handleTag() {
	if gui.tagFileEntry.Text == "" {
		dialog.ShowError(fmt.Errorf("please select a file to tag"), gui.window)
		return
	}
	if err := gui.ensureRunner(); err != nil {
		dialog.ShowError(err, gui.window)
		return
	}

	gui.progress.Show()
	gui.updateStatus("Tagging flashcards...")
	go gui.runTag()
}

func (gui *AnkiTaggerGUI) runTag() {
	defer gui.finishProcessing()

	path, count, err := gui.runner.TagFile(context.Background(), gui.tagFileEntry.Text, gui.tagOutEntry.Text, workflow.Options{
		TagPrompt: gui.tagPromptEntry.Text,
		Progress: func(done, total int) {
			gui.updateStatus(fmt.Sprintf("Tagging flashcards... %d/%d", done, total))
		},
	})
	if err != nil {
		gui.showError(fmt.Sprintf("Tagging failed: %v", err))
		return
	}

	gui.updateStatus(fmt.Sprintf("Tagged %d flashcards.", count))
	gui.showDone("Tagging Complete", fmt.Sprintf("Tagged %d flashcards.\n\nOutput: %s", count, path))
}

func (gui *AnkiTaggerGUI) handleWorkflow() {
	if gui.workflowDirEntry.Text == "" {
		dialog.ShowError(fmt.Errorf("please select an input directory"), gui.window)
		return
	}
	if selectedMode(gui.workflowModeSelect.Selected) == workflow.ModeVisual && !pdf.Available() {
		dialog.ShowError(fmt.Errorf("PDF support unavailable: the MuPDF library could not be loaded"), gui.window)
		return
	}
	if err := gui.ensureRunner(); err != nil {
		dialog.ShowError(err, gui.window)
		return
	}

	gui.progress.Show()
	gui.updateStatus("Running workflow...")
	go gui.runWorkflow()
}

func (gui *AnkiTaggerGUI) runWorkflow() {
	defer gui.finishProcessing()

	ctx := context.Background()
	mode := selectedMode(gui.workflowModeSelect.Selected)

	exts := []string{".pdf"}
	if mode == workflow.ModeText {
		exts = append(exts, ".txt")
	}
	inputs, err := scanner.New(gui.log).FindFiles(ctx, gui.workflowDirEntry.Text, exts...)
	if err != nil {
		gui.showError(fmt.Sprintf("Error finding input files: %v", err))
		return
	}
	gui.updateStatus(fmt.Sprintf("Found %d file(s) to process", len(inputs)))

	report, results, err := gui.runner.Run(ctx, inputs, workflow.Options{
		Mode:      mode,
		OutputDir: gui.outputDirEntry.Text,
	})
	if err != nil {
		gui.showError(fmt.Sprintf("Workflow aborted: %v", err))
		return
	}

	var failed []string
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, fmt.Sprintf("- %s: %v", filepath.Base(res.Input), res.Err))
		}
	}

	message := fmt.Sprintf(
		"Run %s\n\n"+
			"Files processed: %d\n"+
			"Succeeded: %d\n"+
			"Failed: %d\n"+
			"Flashcards: %d\n"+
			"Time taken: %v\n"+
			"Output directory: %s\n\n"+
			"Log file saved to: %s",
		report.RunID,
		report.TotalFiles,
		report.SuccessFiles,
		report.FailedFiles,
		report.TotalRecords,
		report.TimeTaken().Round(time.Second),
		gui.outputDirEntry.Text,
		gui.logFileName,
	)
	if len(failed) > 0 {
		message += "\n\nFailed files:\n" + strings.Join(failed, "\n")
	}

	gui.updateStatus("Workflow complete.")
	gui.showDone("Workflow Complete", message)
}

// ensureRunner builds the pipeline clients once. The Gemini client needs a
// valid API key, so a missing key surfaces here instead of mid-run.
func (gui *AnkiTaggerGUI) ensureRunner() error {
	if gui.runner != nil {
		return nil
	}

	if key := strings.TrimSpace(gui.apiKeyEntry.Text); key != "" {
		gui.cfg.Gemini.APIKey = key
	}
	gem, err := gemini.NewClient(context.Background(), gui.cfg.Gemini.APIKey, gui.log)
	if err != nil {
		return err
	}
	if !pdf.Available() {
		gui.log.Warn("PDF rendering backend unavailable; PDF inputs will fail")
	}
	processor := pdf.NewProcessor(gui.cfg.Workflow.ImageZoom, gui.log)

	var ankiSvc *anki.Service
	if gui.cfg.Workflow.SaveImagesToMedia {
		if err := gui.ankiService.CheckConnection(); err != nil {
			gui.log.Warn("Anki not reachable, images will stay in the output dir: %v", err)
		} else {
			ankiSvc = gui.ankiService
		}
	}

	gui.runner = workflow.New(gui.cfg, gem, processor, ankiSvc, gui.log)
	return nil
}

func (gui *AnkiTaggerGUI) finishProcessing() {
	gui.mutex.Lock()
	gui.progress.Hide()
	gui.mutex.Unlock()
}

func (gui *AnkiTaggerGUI) showError(message string) {
	gui.mutex.Lock()
	defer gui.mutex.Unlock()

	notification := fyne.NewNotification("Error", message)
	fyne.CurrentApp().SendNotification(notification)
	gui.status.SetText("Error occurred during processing")
	gui.log.Error("%s", message)
}

func (gui *AnkiTaggerGUI) updateStatus(message string) {
	gui.mutex.Lock()
	defer gui.mutex.Unlock()
	gui.status.SetText(message)
}

func (gui *AnkiTaggerGUI) showDone(title, message string) {
	gui.mutex.Lock()
	defer gui.mutex.Unlock()

	content := container.NewVBox(
		widget.NewLabel(message),
		widget.NewButton("Open Log File", func() {
			gui.openPath(gui.logFileName)
		}),
	)
	customDialog := dialog.NewCustom(title, "Close", content, gui.window)
	customDialog.Resize(fyne.NewSize(500, 0))
	customDialog.Show()
}

func (gui *AnkiTaggerGUI) openPath(path string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", path)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		dialog.ShowError(fmt.Errorf("failed to open %s: %v", path, err), gui.window)
	}
}

func (gui *AnkiTaggerGUI) startUpdateChecker() {
	go func() {
		time.Sleep(5 * time.Second)
		gui.checkForUpdates()
	}()

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			gui.checkForUpdates()
		}
	}()
}

func (gui *AnkiTaggerGUI) checkForUpdates() {
	info, err := gui.updateChecker.CheckForUpdates()
	if err != nil {
		gui.log.Debug("Failed to check for updates: %v", err)
		return
	}

	if info != nil && info.IsAvailable {
		gui.showUpdateDialog(info)
	}
}

func (gui *AnkiTaggerGUI) showUpdateDialog(info *updater.UpdateInfo) {
	message := fmt.Sprintf(
		"A new version of AnkiTagger is available!\n\n"+
			"Current version: %s\n"+
			"Latest version: %s\n\n"+
			"%s",
		info.CurrentVersion,
		info.LatestVersion,
		info.UpdateMessage,
	)

	content := container.NewVBox(
		widget.NewRichTextFromMarkdown(message),
		widget.NewButton("Download Update", func() {
			gui.openPath(info.DownloadURL)
		}),
	)

	d := dialog.NewCustom("Update Available", "Later", content, gui.window)
	d.Resize(fyne.NewSize(500, 300))
	d.Show()
}

func splitTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func selectedMode(selected string) workflow.Mode {
	if strings.HasPrefix(selected, "Text") {
		return workflow.ModeText
	}
	return workflow.ModeVisual
}

func (gui *AnkiTaggerGUI) Run() {
	gui.setupUI()
	gui.window.ShowAndRun()
}

func main() {
	gui := NewAnkiTaggerGUI()
	gui.startUpdateChecker()
	gui.Run()
}
