package controller

import (
	"strconv"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/internal/pkg/serverutils"
	"ai-docqa-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IRetrievalController interface {
	RegisterRoutes(r fiber.Router)
	RunSession(ctx *fiber.Ctx) error
	RunMulti(ctx *fiber.Ctx) error
	EvictDocument(ctx *fiber.Ctx) error
	Reset(ctx *fiber.Ctx) error
	GetLogs(ctx *fiber.Ctx) error
}

type retrievalController struct {
	retrievalService service.IRetrievalService
	logger           logger.ILogger
}

func NewRetrievalController(retrievalService service.IRetrievalService, log logger.ILogger) IRetrievalController {
	return &retrievalController{
		retrievalService: retrievalService,
		logger:           log,
	}
}

func (c *retrievalController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/retrieval/v1")
	h.Post("session", c.RunSession)
	h.Post("multi", c.RunMulti)
	h.Delete("pool/:documentId", c.EvictDocument)
	h.Delete("pool", c.Reset)
	h.Get("logs", c.GetLogs)
}

func (c *retrievalController) RunSession(ctx *fiber.Ctx) error {
	var req dto.RunSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.retrievalService.RunSession(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *retrievalController) RunMulti(ctx *fiber.Ctx) error {
	var req dto.RunMultiRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.retrievalService.RunMulti(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *retrievalController) EvictDocument(ctx *fiber.Ctx) error {
	documentID := ctx.Params("documentId")
	if documentID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing documentId")
	}
	c.retrievalService.EvictDocument(documentID)
	return ctx.JSON(fiber.Map{"message": "evicted"})
}

func (c *retrievalController) Reset(ctx *fiber.Ctx) error {
	c.retrievalService.Reset()
	return ctx.JSON(fiber.Map{"message": "pool reset"})
}

func (c *retrievalController) GetLogs(ctx *fiber.Ctx) error {
	level := ctx.Query("level")
	limit, _ := strconv.Atoi(ctx.Query("limit", "100"))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))

	entries, err := c.logger.GetLogs(level, limit, offset)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{"logs": entries})
}
