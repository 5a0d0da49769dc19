package handler

import (
	"tempchat/internal/app/chat"
	"tempchat/internal/app/storage"
	"tempchat/internal/app/store"
	"tempchat/internal/app/user"
	"tempchat/internal/configs"
)

// AppDeps is everything the HTTP handlers need.
type AppDeps struct {
	Manager *chat.Manager
	Store   store.Store
	Users   *user.Service
	Config  *configs.AppConfig

	// StorageService is nil when S3 offload is not configured.
	StorageService storage.StorageService
}
