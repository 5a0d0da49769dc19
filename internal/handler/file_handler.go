package handler

import (
	"net/http"
	"path"
	"strings"
	"time"

	"tempchat/internal/app/chat"
	"tempchat/internal/pkg/errs"
	"tempchat/internal/pkg/logx"
	"tempchat/internal/pkg/resp"
)

// PresignedURLDuration is how long a download redirect stays valid.
const PresignedURLDuration = 5 * time.Minute

// HandleDownloadFile redirects to a time-limited URL for an offloaded file. The key must
// belong to the room named by the room query parameter.
func HandleDownloadFile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.StorageService == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageDisabled))
			return
		}

		query := r.URL.Query()

		code, err := chat.NormalizeCode(query.Get("room"))
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		fileKey := query.Get("k")
		if fileKey == "" || strings.Contains(fileKey, "..") {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if !strings.HasPrefix(fileKey, code+"/") {
			logx.Warn("Download rejected: key outside room prefix", "room_code", code, "key", fileKey)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileNotFound))
			return
		}

		fileName := ""
		if name := strings.TrimSpace(query.Get("name")); name != "" {
			fileName = path.Base(name)
		}

		url, err := deps.StorageService.PresignDownload(r.Context(), fileKey, fileName, PresignedURLDuration)
		if err != nil {
			logx.Error(err, "Failed to presign download", "key", fileKey)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
