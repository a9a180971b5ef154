package service

import (
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/theapemachine/a2a-bridge/pkg/a2a"
	"github.com/theapemachine/a2a-bridge/pkg/auth"
	"github.com/theapemachine/a2a-bridge/pkg/errors"
	"github.com/theapemachine/a2a-bridge/pkg/jsonrpc"
)

/*
AgentServer exposes a TaskManager over the A2A wire surface: the agent
card on the well-known path, a health probe, and the JSON-RPC endpoint.
It exists so the bridge can be run end to end without an external agent,
and doubles as a reference for what the client expects a server to do.
*/
type AgentServer struct {
	app     *fiber.App
	card    a2a.AgentCard
	manager TaskManager
	auth    *auth.Service
}

/*
NewAgentServer constructs a server for the supplied card and manager. A
nil auth service leaves the RPC endpoint open.
*/
func NewAgentServer(card a2a.AgentCard, manager TaskManager, authService *auth.Service) *AgentServer {
	return &AgentServer{
		app: fiber.New(fiber.Config{
			AppName:           card.Name,
			ServerHeader:      "A2A-Agent-Server",
			StreamRequestBody: true,
		}),
		card:    card,
		manager: manager,
		auth:    authService,
	}
}

func (srv *AgentServer) Start(addr string) error {
	srv.app.Use(logger.New(), healthcheck.NewHealthChecker())
	srv.app.Get("/", srv.handleRoot)
	srv.app.Get("/.well-known/agent.json", srv.handleAgentCard)
	srv.app.Post("/rpc", srv.handleRPC)

	log.Info("agent server listening", "addr", addr, "agent", srv.card.Name)

	return srv.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (srv *AgentServer) Shutdown() error {
	return srv.app.Shutdown()
}

func (srv *AgentServer) handleRoot(ctx fiber.Ctx) error {
	return ctx.SendString("OK")
}

func (srv *AgentServer) handleAgentCard(ctx fiber.Ctx) error {
	return ctx.JSON(srv.card)
}

/*
handleRPC routes the task lifecycle methods. RPC-level failures travel
inside a 200 envelope the way clients expect; only an unreadable body or
a failed authentication surface as HTTP errors.
*/
func (srv *AgentServer) handleRPC(ctx fiber.Ctx) error {
	ctx.Set("Content-Type", "application/json")

	if srv.auth != nil {
		if err := srv.auth.Verify(bearerToken(ctx)); err != nil {
			log.Warn("rejected rpc request", "error", err)

			return ctx.Status(fiber.StatusUnauthorized).JSON(jsonrpc.NewErrorResponse(
				nil, errors.ErrInvalidRequest.WithMessagef("unauthorized: %v", err),
			))
		}
	}

	var request jsonrpc.RPCRequest

	if err := ctx.Bind().Body(&request); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(jsonrpc.NewErrorResponse(
			nil, errors.ErrInvalidRequest.WithMessagef("invalid request body: %v", err),
		))
	}

	switch request.Method {
	case "tasks/send":
		var params a2a.TaskSendParams

		if rpcErr := unmarshalParams(request.Params, &params); rpcErr != nil {
			return ctx.JSON(jsonrpc.NewErrorResponse(request.ID, rpcErr))
		}

		task, rpcErr := srv.manager.SendTask(ctx.Context(), params)

		if rpcErr != nil {
			return ctx.JSON(jsonrpc.NewErrorResponse(request.ID, rpcErr))
		}

		return ctx.JSON(jsonrpc.NewResponse(request.ID, task))
	case "tasks/get":
		var params a2a.TaskQueryParams

		if rpcErr := unmarshalParams(request.Params, &params); rpcErr != nil {
			return ctx.JSON(jsonrpc.NewErrorResponse(request.ID, rpcErr))
		}

		task, rpcErr := srv.manager.GetTask(ctx.Context(), params)

		if rpcErr != nil {
			return ctx.JSON(jsonrpc.NewErrorResponse(request.ID, rpcErr))
		}

		return ctx.JSON(jsonrpc.NewResponse(request.ID, task))
	default:
		return ctx.JSON(jsonrpc.NewErrorResponse(
			request.ID,
			errors.ErrMethodNotFound.WithMessagef("Method not found: %s", request.Method),
		))
	}
}

func unmarshalParams(raw json.RawMessage, out any) *errors.RpcError {
	if len(raw) == 0 {
		return errors.ErrInvalidParams.WithMessagef("params are required")
	}

	if err := json.Unmarshal(raw, out); err != nil {
		log.Error("failed to unmarshal params", "error", err)
		return errors.ErrInvalidParams.WithMessagef("failed to unmarshal params: %v", err)
	}

	return nil
}

func bearerToken(ctx fiber.Ctx) string {
	return auth.BearerToken(ctx.Get("Authorization"))
}
