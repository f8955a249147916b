package servers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/bililive-go/rowmigrate/src/pkg/inventory"
	"github.com/bililive-go/rowmigrate/src/pkg/reconcile"
	"github.com/bililive-go/rowmigrate/src/pkg/store"
)

// RegisterItemHandlers 注册物品批量写入的 HTTP 处理器
func RegisterItemHandlers(r *mux.Router, items ItemSaver, maxBodyBytes int64) {
	r.HandleFunc("/items/batch", makeSaveItemsHandler(items, maxBodyBytes)).Methods("POST")
}

func makeSaveItemsHandler(items ItemSaver, maxBodyBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upsert := false
		if v := r.URL.Query().Get("upsert"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid upsert flag: "+v)
				return
			}
			upsert = b
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, err.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		parsed, err := inventory.ParseItems(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := items.SaveBatch(r.Context(), parsed, upsert)
		switch {
		case err == nil:
			code := http.StatusCreated
			if len(result.Created) == 0 {
				code = http.StatusOK
			}
			writeJsonWithStatusCode(w, code, commonResp{Data: result})
		case errors.Is(err, store.ErrInvalidID):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			var fe *reconcile.FetchError
			if errors.As(err, &fe) {
				logrus.WithError(err).Error("failed to look up existing items")
			}
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}
