package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/audio"
	"github.com/d60-Lab/friendlyvoice/internal/media"
	"github.com/d60-Lab/friendlyvoice/pkg/response"
)

// UploadRecording 上传录音：请求体（或 multipart 的 audio 字段）作为采集流，
// 返回可用于发布、私信或个人声音的地址
// @Summary 上传录音
// @Tags 录音
// @Security BearerAuth
// @Accept audio/webm
// @Accept multipart/form-data
// @Param audio formData file false "录音文件"
// @Success 201 {object} response.Response{data=map[string]interface{}}
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/recordings [post]
func (h *Handler) UploadRecording(c *gin.Context) {
	if limit := int64(h.mediaCfg.MaxPayloadBytes); limit > 0 {
		// 余量留给 multipart 头部；录音本身的上限由录音器判定
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+64<<10)
	}

	src, mimeType, err := recordingSource(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	defer src.Close()
	if mimeType == "" {
		mimeType = h.mediaCfg.MIMEType
	}

	ctx := c.Request.Context()
	payload, err := audio.Capture(ctx,
		audio.NewReaderDevice(src, h.mediaCfg.ChunkSize, mimeType),
		audio.WithMaxBytes(h.mediaCfg.MaxPayloadBytes),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	mediaURL, err := media.SavePayload(ctx, h.media, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"url": mediaURL, "mimeType": mimeType})
}

func recordingSource(c *gin.Context) (io.ReadCloser, string, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("audio")
		if err != nil {
			return nil, "", fmt.Errorf("audio file is required: %w", err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", err
		}
		return f, fh.Header.Get("Content-Type"), nil
	}
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil, "", fmt.Errorf("empty recording")
	}
	return c.Request.Body, c.ContentType(), nil
}

// storeAudio 将 data URI 形式的录音写入媒体存储；已有地址原样返回
func (h *Handler) storeAudio(ctx context.Context, payload string) (string, error) {
	if limit := h.mediaCfg.MaxPayloadBytes; limit > 0 && len(payload) > limit/3*4+1024 {
		return "", fmt.Errorf("recording too large: %w", apperr.ErrInvalidInput)
	}
	return media.SavePayload(ctx, h.media, payload)
}
