package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/repository"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// ImportDatasetsRequest selects datasets of the bootstrap folder. An empty
// selection imports every dataset not yet stored.
type ImportDatasetsRequest struct {
	Names []string `json:"names"`
}

// ListDatasets handles GET /datasets.
func (c *Controller) ListDatasets(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	datasets, err := repository.NewDatasetRepository(c.DB).List(reqCtx)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list datasets")
	}

	var counts []struct {
		DatasetID uint
		N         int64
	}
	if err := c.DB.WithContext(reqCtx).Model(&entities.DatasetFile{}).
		Select("dataset_id, COUNT(*) AS n").
		Group("dataset_id").
		Scan(&counts).Error; err != nil {
		return c.HandleError(ctx, err, "Failed to count dataset files")
	}
	byDataset := make(map[uint]int64, len(counts))
	for _, row := range counts {
		byDataset[row.DatasetID] = row.N
	}

	out := make([]DatasetResponse, 0, len(datasets))
	for _, d := range datasets {
		out = append(out, newDatasetResponse(d, byDataset[d.ID]))
	}
	return ctx.JSON(http.StatusOK, out)
}

// AvailableDatasets handles GET /datasets/available: the datasets of the
// bootstrap folder that are not stored yet. Staff only.
func (c *Controller) AvailableDatasets(ctx echo.Context) error {
	if err := c.requireDatasetFS(); err != nil {
		return c.HandleError(ctx, err, "Dataset import is not configured")
	}
	candidates, err := c.datasets.Available(ctx.Request().Context(), c.datasetFS)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read the dataset index")
	}
	return ctx.JSON(http.StatusOK, candidates)
}

// ImportDatasets handles POST /datasets. Staff only.
func (c *Controller) ImportDatasets(ctx echo.Context) error {
	if err := c.requireDatasetFS(); err != nil {
		return c.HandleError(ctx, err, "Dataset import is not configured")
	}

	var in ImportDatasetsRequest
	if ctx.Request().ContentLength != 0 {
		if err := bind(ctx, &in); err != nil {
			return c.HandleError(ctx, err, "Invalid dataset import request")
		}
	}

	user := currentUser(ctx)
	out, err := c.datasets.Import(ctx.Request().Context(), c.datasetFS, &user.ID, in.Names)
	if err != nil {
		return c.HandleError(ctx, err, "Dataset import failed")
	}
	return ctx.JSON(http.StatusCreated, out)
}

func (c *Controller) requireDatasetFS() error {
	if c.datasetFS == nil {
		return errors.Newf("datasets.root is not configured").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// ListDatasetFiles handles GET /datasets/:id/files.
func (c *Controller) ListDatasetFiles(ctx echo.Context) error {
	id, err := pathID(ctx, "id", "dataset")
	if err != nil {
		return c.HandleError(ctx, err, "Dataset not found")
	}

	reqCtx := ctx.Request().Context()
	repo := repository.NewDatasetRepository(c.DB)
	if _, err := repo.GetByID(reqCtx, id); err != nil {
		if errors.Is(err, repository.ErrDatasetNotFound) {
			err = errors.NotFoundError("dataset")
		}
		return c.HandleError(ctx, err, "Dataset not found")
	}

	files, err := repo.Files(reqCtx, []uint{id})
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list dataset files")
	}
	out := make([]FileResponse, 0, len(files))
	for i := range files {
		out = append(out, newFileResponse(&files[i], i))
	}
	return ctx.JSON(http.StatusOK, out)
}
