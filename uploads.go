package main

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cascacheck/cascacheck_backend/config"
	"github.com/cascacheck/cascacheck_backend/models"
	"github.com/cascacheck/cascacheck_backend/utils"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

// Photo dimensions after normalization. Originals above maxPhotoWidth are
// downscaled; thumbnails are fixed-width.
const (
	maxPhotoWidth  = 1600
	thumbnailWidth = 320
)

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

type uploadPhotoResponse struct {
	PhotoURL     string `json:"photoUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	ObjectKey    string `json:"objectKey"`
}

// uploadItemPhotoHandler receives a multipart photo for a conforming
// checklist item, normalizes it and stores it in GCS. The object key is
// derived from the item so re-uploads overwrite rather than accumulate.
func uploadItemPhotoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		ctx, ok := requireSession(c)
		if !ok {
			return
		}

		checklistId, err := strconv.Atoi(c.PostForm("checklist_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "checklist_id is required"})
			return
		}
		itemId, err := strconv.Atoi(c.PostForm("item_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required"})
			return
		}

		// Scope check happens here; collaborators cannot reach other stores.
		checklist, err := models.GetChecklist(ctx, checklistId)
		if err != nil {
			respondError(c, err)
			return
		}
		var previousURL string
		for _, item := range checklist.Items {
			if item.ID == itemId {
				previousURL = item.PhotoUrl
			}
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		mimeType := fileHeader.Header.Get("Content-Type")
		if !imageMimeTypes[mimeType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file"})
			return
		}
		if int64(len(data)) > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}

		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is not a valid image"})
			return
		}
		if img.Bounds().Dx() > maxPhotoWidth {
			img = imaging.Resize(img, maxPhotoWidth, 0, imaging.Lanczos)
		}
		thumbnail := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)

		var photoBuf bytes.Buffer
		if err := imaging.Encode(&photoBuf, img, imaging.JPEG); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode image"})
			return
		}
		var thumbBuf bytes.Buffer
		if err := imaging.Encode(&thumbBuf, thumbnail, imaging.JPEG); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode image"})
			return
		}

		objectKey := itemPhotoObjectKey(checklist.StoreId, checklistId, itemId)
		thumbnailKey := thumbnailObjectKey(objectKey)

		if err := utils.UploadBytesToGCS(ctx, objectKey, photoBuf.Bytes(), "image/jpeg"); err != nil {
			logUploadError(logger, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
			return
		}
		if err := utils.UploadBytesToGCS(ctx, thumbnailKey, thumbBuf.Bytes(), "image/jpeg"); err != nil {
			logUploadError(logger, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
			return
		}

		// Evidence that lived under a different key is orphaned by the
		// replacement; remove it best effort.
		if oldKey := utils.ExtractObjectKeyFromURL(previousURL); oldKey != "" && oldKey != objectKey {
			if err := utils.DeleteImageFromGCS(ctx, oldKey); err != nil {
				logUploadError(logger, err)
			}
			if err := utils.DeleteImageFromGCS(ctx, thumbnailObjectKey(oldKey)); err != nil {
				logUploadError(logger, err)
			}
		}

		photoURL := utils.BuildObjectAccessURL(objectKey)
		if _, err := models.AttachItemPhoto(ctx, checklistId, itemId, photoURL); err != nil {
			respondError(c, err)
			return
		}

		logger.WithFields(logrus.Fields{
			"store_id":     checklist.StoreId,
			"checklist_id": checklistId,
			"item_id":      itemId,
			"object_key":   objectKey,
			"size":         len(data),
		}).Info("[upload.item-photo]")

		c.JSON(http.StatusOK, gin.H{
			"data": uploadPhotoResponse{
				PhotoURL:     photoURL,
				ThumbnailURL: utils.BuildObjectAccessURL(thumbnailKey),
				ObjectKey:    objectKey,
			},
		})
	}
}

func itemPhotoObjectKey(storeId, checklistId, itemId int) string {
	var b strings.Builder
	b.WriteString("stores/")
	b.WriteString(strconv.Itoa(storeId))
	b.WriteString("/checklists/")
	b.WriteString(strconv.Itoa(checklistId))
	b.WriteString("/items/")
	b.WriteString(strconv.Itoa(itemId))
	b.WriteString(".jpg")
	return b.String()
}

func thumbnailObjectKey(objectKey string) string {
	idx := strings.LastIndex(objectKey, "/")
	if idx < 0 {
		return "thumbnails/" + objectKey
	}
	return objectKey[:idx] + "/thumbnails/" + objectKey[idx+1:]
}

func logUploadError(logger *logrus.Logger, err error) {
	logger.WithFields(logrus.Fields{
		"error": err.Error(),
	}).Error("[upload.error]")
}
