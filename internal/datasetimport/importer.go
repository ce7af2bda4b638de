// Package datasetimport bootstraps datasets from a folder tree.
//
// The root holds datasets.csv listing one dataset per row. Each dataset
// folder holds metadata.csv, timestamp.csv and optionally spectrograms.csv.
// Datasets whose name already exists are skipped.
package datasetimport

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/repository"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability/metrics"
)

// Bootstrap file names.
const (
	DatasetsFile     = "datasets.csv"
	MetadataFile     = "metadata.csv"
	TimestampFile    = "timestamp.csv"
	SpectrogramsFile = "spectrograms.csv"
)

// parseConcurrency bounds the dataset folders parsed at once.
const parseConcurrency = 4

// GetLogger returns the dataset import module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datasetimport")
}

// Candidate is a dataset listed in datasets.csv.
type Candidate struct {
	Name            string  `json:"dataset"`
	Path            string  `json:"path"`
	FileType        string  `json:"file_type"`
	SampleRate      float64 `json:"dataset_sr"`
	SpectroDuration float64 `json:"spectro_duration"`
}

// Outcome lists what an import did.
type Outcome struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
	Files    int      `json:"files"`
}

// Importer creates datasets from a bootstrap folder.
type Importer struct {
	db       *gorm.DB
	files    *campaign.FileCache
	recorder metrics.Recorder
	logger   logger.Logger
}

// NewImporter creates an importer. files and recorder may be nil.
func NewImporter(db *gorm.DB, files *campaign.FileCache, recorder metrics.Recorder) *Importer {
	return &Importer{
		db:       db,
		files:    files,
		recorder: metrics.OrNop(recorder),
		logger:   GetLogger(),
	}
}

// Candidates reads datasets.csv.
func (im *Importer) Candidates(fsys fs.FS) ([]Candidate, error) {
	records, err := readCSV(fsys, DatasetsFile)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	if err := require(DatasetsFile, records, "path", "dataset"); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(records))
	for _, rec := range records {
		c := Candidate{
			Name:     rec.str("dataset"),
			Path:     rec.str("path"),
			FileType: rec.str("file_type"),
		}
		if c.Name == "" || c.Path == "" {
			return nil, parseError(DatasetsFile, errors.NewStd("dataset and path must not be empty"))
		}
		if raw := rec.str("dataset_sr"); raw != "" {
			if c.SampleRate, err = parseFloat(DatasetsFile, "dataset_sr", raw); err != nil {
				return nil, err
			}
		}
		if raw := rec.str("spectro_duration"); raw != "" {
			if c.SpectroDuration, err = parseFloat(DatasetsFile, "spectro_duration", raw); err != nil {
				return nil, err
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// Available returns the candidates not imported yet.
func (im *Importer) Available(ctx context.Context, fsys fs.FS) ([]Candidate, error) {
	candidates, err := im.Candidates(fsys)
	if err != nil {
		return nil, err
	}
	repo := repository.NewDatasetRepository(im.db)
	var available []Candidate
	for _, c := range candidates {
		exists, err := repo.ExistsByName(ctx, c.Name)
		if err != nil {
			return nil, err
		}
		if !exists {
			available = append(available, c)
		}
	}
	return available, nil
}

// Import creates the listed datasets of fsys, or every new one when names is
// empty. Folders are parsed before anything is written.
func (im *Importer) Import(ctx context.Context, fsys fs.FS, ownerID *uint, names []string) (out *Outcome, err error) {
	start := time.Now()
	defer func() {
		im.recorder.RecordDuration(metrics.OpDatasetImport, time.Since(start).Seconds())
		if err != nil {
			im.recorder.RecordOperation(metrics.OpDatasetImport, metrics.StatusError)
			im.recorder.RecordError(metrics.OpDatasetImport, string(errors.CategoryOf(err)))
			return
		}
		im.recorder.RecordOperation(metrics.OpDatasetImport, metrics.StatusSuccess)
	}()

	available, err := im.Available(ctx, fsys)
	if err != nil {
		return nil, err
	}

	out = &Outcome{}
	var selected []Candidate
	for _, c := range available {
		if len(names) == 0 || slices.Contains(names, c.Name) {
			selected = append(selected, c)
		}
	}
	for _, name := range names {
		if !slices.ContainsFunc(selected, func(c Candidate) bool { return c.Name == name }) {
			out.Skipped = append(out.Skipped, name)
		}
	}

	parsed := make([]*folder, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parseConcurrency)
	for i, c := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := parseFolder(fsys, c)
			if err != nil {
				return err
			}
			f.dataset.OwnerID = ownerID
			parsed[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	err = im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewDatasetRepository(tx)
		for _, f := range parsed {
			if err := repo.Create(ctx, f.dataset, f.files); err != nil {
				if errors.Is(err, repository.ErrDuplicateKey) {
					return errors.Fields("dataset", errors.CodeUnique, "Dataset "+f.dataset.Name+" already exists.")
				}
				return err
			}
			out.Imported = append(out.Imported, f.dataset.Name)
			out.Files += len(f.files)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if im.files != nil && len(out.Imported) > 0 {
		im.files.Flush()
	}
	im.recorder.AddCount(metrics.OpDatasetImport, metrics.ActionCreated, len(out.Imported))
	im.logger.Info("datasets imported",
		logger.Int("datasets", len(out.Imported)),
		logger.Int("files", out.Files),
		logger.Int("skipped", len(out.Skipped)))
	return out, nil
}

// folder is a parsed dataset folder.
type folder struct {
	dataset *entities.Dataset
	files   []entities.DatasetFile
}

func parseFolder(fsys fs.FS, c Candidate) (*folder, error) {
	metadataName := path.Join(c.Path, MetadataFile)
	records, err := readCSV(fsys, metadataName)
	if err != nil {
		return nil, err
	}
	if err := require(metadataName, records, "sample_rate", "audio_file_dataset_duration"); err != nil {
		return nil, err
	}
	meta := records[0]

	audio := &entities.AudioMetadata{}
	if audio.SampleRate, err = parseFloat(metadataName, "sample_rate", meta.str("sample_rate")); err != nil {
		return nil, err
	}
	if audio.FileDuration, err = parseFloat(metadataName, "audio_file_dataset_duration", meta.str("audio_file_dataset_duration")); err != nil {
		return nil, err
	}
	if audio.SampleBits, err = parseInt(metadataName, "sample_bits", meta.str("sample_bits")); err != nil {
		return nil, err
	}
	if audio.ChannelCount, err = parseInt(metadataName, "channel_count", meta.str("channel_count")); err != nil {
		return nil, err
	}
	for column, dst := range map[string]**time.Time{"start_date": &audio.Start, "end_date": &audio.End} {
		if raw := meta.str(column); raw != "" {
			t, err := parseTimestamp(metadataName, raw)
			if err != nil {
				return nil, err
			}
			*dst = &t
		}
	}
	if audio.FileDuration <= 0 {
		audio.FileDuration = c.SpectroDuration
	}
	if audio.FileDuration <= 0 {
		return nil, parseError(metadataName, errors.NewStd("audio_file_dataset_duration must be positive"))
	}

	files, err := parseTimestamps(fsys, c, audio.FileDuration)
	if err != nil {
		return nil, err
	}
	spectros, err := parseSpectrograms(fsys, c)
	if err != nil {
		return nil, err
	}

	return &folder{
		dataset: &entities.Dataset{
			Name:                      c.Name,
			Path:                      c.Path,
			FileType:                  c.FileType,
			AudioMetadata:             audio,
			SpectrogramConfigurations: spectros,
		},
		files: files,
	}, nil
}

// parseTimestamps builds the files of a dataset; each file lasts duration seconds.
func parseTimestamps(fsys fs.FS, c Candidate, duration float64) ([]entities.DatasetFile, error) {
	name := path.Join(c.Path, TimestampFile)
	records, err := readCSV(fsys, name)
	if err != nil {
		return nil, err
	}
	if err := require(name, records, "filename", "timestamp"); err != nil {
		return nil, err
	}

	length := time.Duration(duration * float64(time.Second))
	files := make([]entities.DatasetFile, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		filename := rec.str("filename")
		if filename == "" || seen[filename] {
			return nil, parseError(name, fmt.Errorf("empty or duplicate filename %q", filename))
		}
		seen[filename] = true
		start, err := parseTimestamp(name, rec.str("timestamp"))
		if err != nil {
			return nil, err
		}
		files = append(files, entities.DatasetFile{
			Filename: filename,
			Filepath: path.Join(c.Path, "audio", filename),
			Start:    start,
			End:      start.Add(length),
		})
	}
	return files, nil
}

// parseSpectrograms reads the optional spectrograms.csv.
func parseSpectrograms(fsys fs.FS, c Candidate) ([]entities.SpectrogramConfiguration, error) {
	name := path.Join(c.Path, SpectrogramsFile)
	if _, err := fs.Stat(fsys, name); err != nil {
		return nil, nil
	}
	records, err := readCSV(fsys, name)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	if err := require(name, records, "name"); err != nil {
		return nil, err
	}

	configs := make([]entities.SpectrogramConfiguration, 0, len(records))
	for _, rec := range records {
		sc := entities.SpectrogramConfiguration{
			Name:     rec.str("name"),
			Colormap: rec.str("colormap"),
		}
		ints := map[string]*int{"nfft": &sc.NFFT, "window_size": &sc.WindowSize, "zoom_level": &sc.ZoomLevel}
		for column, dst := range ints {
			if *dst, err = parseInt(name, column, rec.str(column)); err != nil {
				return nil, err
			}
		}
		floats := map[string]*float64{
			"overlap":              &sc.Overlap,
			"frequency_resolution": &sc.FrequencyResolution,
			"temporal_resolution":  &sc.TemporalResolution,
		}
		for column, dst := range floats {
			if raw := rec.str(column); raw != "" {
				if *dst, err = parseFloat(name, column, raw); err != nil {
					return nil, err
				}
			}
		}
		configs = append(configs, sc)
	}
	return configs, nil
}
