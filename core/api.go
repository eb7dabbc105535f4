package core

import (
	"context"

	"pkt.systems/replx/schema"
)

// Service is the full client API: every operation a front end (CLI
// command or console session) can perform. The Engine implements it.
type Service interface {
	// Connection lifecycle.
	Connect(ctx context.Context, req schema.ConnectRequest) (schema.ConnectResponse, error)
	Disconnect(ctx context.Context, req schema.DisconnectRequest) (schema.DisconnectResponse, error)
	ListConns(ctx context.Context, req schema.ListConnsRequest) (schema.ListConnsResponse, error)
	ActivateConn(ctx context.Context, req schema.ActivateConnRequest) (schema.ActivateConnResponse, error)

	// Evaluation.
	Eval(ctx context.Context, req schema.EvalRequest) (schema.EvalResponse, error)
	LoadFile(ctx context.Context, req schema.LoadFileRequest) (schema.LoadFileResponse, error)

	// Namespaces.
	SetNamespace(ctx context.Context, req schema.SetNamespaceRequest) (schema.SetNamespaceResponse, error)
	ListNamespaces(ctx context.Context, req schema.ListNamespacesRequest) (schema.ListNamespacesResponse, error)

	// Symbol and code queries.
	SymbolInfo(ctx context.Context, req schema.SymbolInfoRequest) (schema.SymbolInfoResponse, error)
	Macroexpand(ctx context.Context, req schema.MacroexpandRequest) (schema.MacroexpandResponse, error)
	Transpile(ctx context.Context, req schema.TranspileRequest) (schema.TranspileResponse, error)
	FindDef(ctx context.Context, req schema.FindDefRequest) (schema.FindDefResponse, error)
	Complete(ctx context.Context, req schema.CompleteRequest) (schema.CompleteResponse, error)
	Protocols(ctx context.Context, req schema.ProtocolsRequest) (schema.ProtocolsResponse, error)

	// Inspector.
	InspectStart(ctx context.Context, req schema.InspectStartRequest) (schema.InspectStartResponse, error)
	InspectNav(ctx context.Context, req schema.InspectNavRequest) (schema.InspectNavResponse, error)
	InspectBack(ctx context.Context, req schema.InspectBackRequest) (schema.InspectBackResponse, error)
	InspectQuit(ctx context.Context, req schema.InspectQuitRequest) (schema.InspectQuitResponse, error)

	// Transcript view and input.
	GetTranscript(ctx context.Context, req schema.GetTranscriptRequest) (schema.GetTranscriptResponse, error)
	ScrollTranscript(ctx context.Context, req schema.ScrollTranscriptRequest) (schema.ScrollTranscriptResponse, error)
	InsertInput(ctx context.Context, req schema.InsertInputRequest) (schema.InsertInputResponse, error)
	EraseInput(ctx context.Context, req schema.EraseInputRequest) (schema.EraseInputResponse, error)
	SubmitInput(ctx context.Context, req schema.SubmitInputRequest) (schema.SubmitInputResponse, error)
	GetHistory(ctx context.Context, req schema.GetHistoryRequest) (schema.GetHistoryResponse, error)
}

var _ Service = (*Engine)(nil)
