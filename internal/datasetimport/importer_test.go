package datasetimport_test

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datasetimport"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/repository"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/testutil"
)

func bootstrapFS() fstest.MapFS {
	return fstest.MapFS{
		"datasets.csv": {Data: []byte("path,dataset,spectro_duration,dataset_sr,file_type\n" +
			"glider/2022,gliderSPAmsDemo,600,128000,.wav\n" +
			"sea/2023,seaDemo,3600,48000,.flac\n")},
		"glider/2022/metadata.csv": {Data: []byte("sample_rate,sample_bits,channel_count,audio_file_dataset_duration,start_date,end_date\n" +
			"128000,16,1,600,2022-07-13T06:00:00.000+0000,2022-07-13T06:20:00.000+0000\n")},
		"glider/2022/timestamp.csv": {Data: []byte("filename,timestamp\n" +
			"sound001.wav,2022-07-13T06:10:00.000+0000\n" +
			"sound000.wav,2022-07-13T06:00:00.000+0000\n")},
		"glider/2022/spectrograms.csv": {Data: []byte("name,nfft,window_size,overlap,zoom_level,colormap,frequency_resolution,temporal_resolution\n" +
			"4096_4096_90,4096,4096,90,8,viridis,31.25,0.04\n")},
		"sea/2023/metadata.csv": {Data: []byte("sample_rate,sample_bits,channel_count,audio_file_dataset_duration\n" +
			"48000,24,2,3600\n")},
		"sea/2023/timestamp.csv": {Data: []byte("filename,timestamp\n" +
			"a.flac,2023-05-01T00:00:00Z\n")},
	}
}

func TestImportCreatesDatasets(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.AddUser(t, db, "staff", true)
	ctx := context.Background()

	im := datasetimport.NewImporter(db, campaign.NewFileCache(0), nil)
	out, err := im.Import(ctx, bootstrapFS(), &owner.ID, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gliderSPAmsDemo", "seaDemo"}, out.Imported)
	assert.Equal(t, 3, out.Files)

	repo := repository.NewDatasetRepository(db)
	glider, err := repo.GetByName(ctx, "gliderSPAmsDemo")
	require.NoError(t, err)
	require.NotNil(t, glider.AudioMetadata)
	assert.InDelta(t, 64000, glider.Nyquist(), 0)
	assert.Equal(t, owner.ID, *glider.OwnerID)

	files, err := repo.Files(ctx, []uint{glider.ID})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "sound000.wav", files[0].Filename, "files are sorted by start")
	assert.Equal(t, time.Date(2022, 7, 13, 6, 0, 0, 0, time.UTC), files[0].Start)
	assert.Equal(t, time.Date(2022, 7, 13, 6, 10, 0, 0, time.UTC), files[0].End)
	assert.Equal(t, "glider/2022/audio/sound000.wav", files[0].Filepath)

	var spectros []entities.SpectrogramConfiguration
	require.NoError(t, db.Where("dataset_id = ?", glider.ID).Find(&spectros).Error)
	require.Len(t, spectros, 1)
	assert.Equal(t, 4096, spectros[0].NFFT)
	assert.InDelta(t, 31.25, spectros[0].FrequencyResolution, 1e-9)

	available, err := im.Available(ctx, bootstrapFS())
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestImportSelectedAndExisting(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.AddDataset(t, db, "seaDemo", 1, testutil.FixtureStart)
	ctx := context.Background()

	im := datasetimport.NewImporter(db, nil, nil)
	available, err := im.Available(ctx, bootstrapFS())
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "gliderSPAmsDemo", available[0].Name)
	assert.InDelta(t, 600, available[0].SpectroDuration, 0)

	out, err := im.Import(ctx, bootstrapFS(), nil, []string{"seaDemo", "gliderSPAmsDemo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gliderSPAmsDemo"}, out.Imported)
	assert.Equal(t, []string{"seaDemo"}, out.Skipped)
}

func TestImportRejectsBrokenFolder(t *testing.T) {
	db := testutil.NewDB(t)
	fsys := bootstrapFS()
	fsys["sea/2023/timestamp.csv"] = &fstest.MapFile{Data: []byte("filename,timestamp\na.flac,yesterday\n")}

	_, err := datasetimport.NewImporter(db, nil, nil).Import(context.Background(), fsys, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))

	exists, err := repository.NewDatasetRepository(db).ExistsByName(context.Background(), "gliderSPAmsDemo")
	require.NoError(t, err)
	assert.False(t, exists, "nothing is written when a folder fails to parse")
}

func TestImportMissingIndex(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := datasetimport.NewImporter(db, nil, nil).Import(context.Background(), fstest.MapFS{}, nil, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}
