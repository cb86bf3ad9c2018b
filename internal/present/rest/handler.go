package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/totegamma/logbook/internal/domain"
	"github.com/totegamma/logbook/internal/present/rest/presenter"
	"github.com/totegamma/logbook/internal/service"
	"github.com/totegamma/logbook/internal/usecase"
)

type Handler struct {
	config     domain.Config
	log        *usecase.LogUsecase
	tag        *usecase.TagUsecase
	logbook    *usecase.LogbookUsecase
	property   *usecase.PropertyUsecase
	attachment *usecase.AttachmentUsecase
	signal     *service.SignalService
}

func NewHandler(
	config domain.Config,
	log *usecase.LogUsecase,
	tag *usecase.TagUsecase,
	logbook *usecase.LogbookUsecase,
	property *usecase.PropertyUsecase,
	attachment *usecase.AttachmentUsecase,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		config:     config,
		log:        log,
		tag:        tag,
		logbook:    logbook,
		property:   property,
		attachment: attachment,
		signal:     signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.handleHealth)

	e.GET("/logs", h.handleSearchLogs)
	e.GET("/logs/:id", h.handleGetLog)
	e.PUT("/logs", h.handleCreateLog)
	e.PUT("/logs/multipart", h.handleCreateLogMultipart)
	e.GET("/attachment/:id", h.handleAttachment)

	e.GET("/tags", h.handleListTags)
	e.GET("/tags/:name", h.handleGetTag)
	e.PUT("/tags/:name", h.handlePutTag)
	e.DELETE("/tags/:name", h.handleDeleteTag)

	e.GET("/logbooks", h.handleListLogbooks)
	e.GET("/logbooks/:name", h.handleGetLogbook)
	e.PUT("/logbooks/:name", h.handlePutLogbook)
	e.DELETE("/logbooks/:name", h.handleDeleteLogbook)

	e.GET("/properties", h.handleListProperties)
	e.GET("/properties/:name", h.handleGetProperty)
	e.PUT("/properties/:name", h.handlePutProperty)
	e.DELETE("/properties/:name", h.handleDeleteProperty)
	e.DELETE("/properties/:name/attributes/:attribute", h.handleDeleteAttribute)

	if h.signal != nil {
		e.GET("/realtime", h.handleRealtime)
	}
}

type healthResponse struct {
	Status string        `json:"status"`
	Node   domain.Config `json:"node"`
}

func (h *Handler) handleHealth(c echo.Context) error {
	return presenter.OK(c, healthResponse{Status: "ok", Node: h.config})
}

func (h *Handler) handleSearchLogs(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.log.Search(ctx, c.QueryParams())
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleGetLog(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid log id")
	}

	log, err := h.log.Get(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, log)
}

func (h *Handler) handleCreateLog(c echo.Context) error {
	ctx := c.Request().Context()

	var draft domain.LogDraft
	if err := c.Bind(&draft); err != nil {
		return presenter.BadRequest(c, err)
	}

	log, err := h.log.Create(ctx, draft, nil)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, log)
}

// handleCreateLogMultipart accepts the entry as a logEntry JSON part and its attachments as files parts.
func (h *Handler) handleCreateLogMultipart(c echo.Context) error {
	ctx := c.Request().Context()

	form, err := c.MultipartForm()
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	entry := form.Value["logEntry"]
	if len(entry) == 0 {
		return presenter.BadRequestMessage(c, "logEntry part is required")
	}
	var draft domain.LogDraft
	if err := json.Unmarshal([]byte(entry[0]), &draft); err != nil {
		return presenter.BadRequestMessage(c, "invalid logEntry: "+err.Error())
	}

	uploads, files, err := openUploads(form.File["files"])
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	log, err := h.log.Create(ctx, draft, uploads)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, log)
}

func openUploads(headers []*multipart.FileHeader) ([]domain.AttachmentUpload, []multipart.File, error) {
	uploads := make([]domain.AttachmentUpload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, files, errors.Wrapf(err, "open %q", header.Filename)
		}
		files = append(files, file)
		uploads = append(uploads, domain.AttachmentUpload{
			Attachment: domain.Attachment{
				Filename:                header.Filename,
				FileMetadataDescription: header.Header.Get(echo.HeaderContentType),
			},
			Content: file,
		})
	}
	return uploads, files, nil
}

func (h *Handler) handleAttachment(c echo.Context) error {
	ctx := c.Request().Context()

	attachment, content, err := h.attachment.Fetch(ctx, c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	defer content.Close()

	contentType := attachment.FileMetadataDescription
	if !strings.Contains(contentType, "/") {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", attachment.Filename))
	return c.Stream(http.StatusOK, contentType, content)
}

func includeInactive(c echo.Context) bool {
	v, _ := strconv.ParseBool(c.QueryParam("inactive"))
	return v
}

func (h *Handler) handleListTags(c echo.Context) error {
	tags, err := h.tag.List(c.Request().Context(), includeInactive(c))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, tags)
}

func (h *Handler) handleGetTag(c echo.Context) error {
	tag, err := h.tag.Get(c.Request().Context(), c.Param("name"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, tag)
}

func (h *Handler) handlePutTag(c echo.Context) error {
	var tag domain.Tag
	if err := bindBody(c, &tag); err != nil {
		return presenter.BadRequest(c, err)
	}
	tag.Name = c.Param("name")

	stored, err := h.tag.Upsert(c.Request().Context(), tag)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, stored)
}

func (h *Handler) handleDeleteTag(c echo.Context) error {
	tag, err := h.tag.Delete(c.Request().Context(), c.Param("name"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, tag)
}

func (h *Handler) handleListLogbooks(c echo.Context) error {
	logbooks, err := h.logbook.List(c.Request().Context(), includeInactive(c))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, logbooks)
}

func (h *Handler) handleGetLogbook(c echo.Context) error {
	logbook, err := h.logbook.Get(c.Request().Context(), c.Param("name"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, logbook)
}

func (h *Handler) handlePutLogbook(c echo.Context) error {
	var logbook domain.Logbook
	if err := bindBody(c, &logbook); err != nil {
		return presenter.BadRequest(c, err)
	}
	logbook.Name = c.Param("name")

	stored, err := h.logbook.Upsert(c.Request().Context(), logbook)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, stored)
}

func (h *Handler) handleDeleteLogbook(c echo.Context) error {
	logbook, err := h.logbook.Delete(c.Request().Context(), c.Param("name"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, logbook)
}

func (h *Handler) handleListProperties(c echo.Context) error {
	properties, err := h.property.List(c.Request().Context(), includeInactive(c))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, properties)
}

func (h *Handler) handleGetProperty(c echo.Context) error {
	property, err := h.property.Get(c.Request().Context(), c.Param("name"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, property)
}

func (h *Handler) handlePutProperty(c echo.Context) error {
	var property domain.Property
	if err := bindBody(c, &property); err != nil {
		return presenter.BadRequest(c, err)
	}
	property.Name = c.Param("name")

	stored, err := h.property.Upsert(c.Request().Context(), property)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, stored)
}

func (h *Handler) handleDeleteProperty(c echo.Context) error {
	property, err := h.property.Delete(c.Request().Context(), c.Param("name"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, property)
}

func (h *Handler) handleDeleteAttribute(c echo.Context) error {
	property, err := h.property.DeleteAttribute(c.Request().Context(), c.Param("name"), c.Param("attribute"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, property)
}

// bindBody decodes an optional JSON body; the name always comes from the path.
func bindBody(c echo.Context, v any) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(c.Request().Body).Decode(v)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Request struct {
	Type     string   `json:"type"`
	Logbooks []string `json:"logbooks"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan domain.LogCreatedEvent)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{}, 1)

	go func() {
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Logbooks:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Logbooks),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case <-ctx.Done():
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
