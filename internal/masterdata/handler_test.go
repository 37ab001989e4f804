package masterdata

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter() http.Handler {
	r := chi.NewRouter()
	NewHandler(nil, NewService(NewMemoryStore(), nil)).MountRoutes(r)
	return r
}

func TestHandlerCreateProductConflict(t *testing.T) {
	router := newTestRouter()

	body := `{"sku":"SKU-1","name":"Widget"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"sku":"sku-1","name":"Other"}`)))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "Duplicate Barcode")
}

func TestHandlerValidation(t *testing.T) {
	router := newTestRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/locations", strings.NewReader(`{"barcode":"L1"}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "warehouseid")
}

func TestHandlerResolveMissingLocation(t *testing.T) {
	router := newTestRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/locations/resolve?barcode=NOPE", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
