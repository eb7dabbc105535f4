package schema

// ConnID identifies a live connection to an evaluator.
type ConnID string

// RequestID identifies one in-flight request on a connection.
type RequestID string

// Namespace identifies an evaluation namespace on the peer.
type Namespace string

// Handle is an opaque server-issued identifier naming a remote value
// for inspection. Valid until the inspect session ends.
type Handle string

// Op is the operation name carried in an outgoing request.
type Op string

const (
	// OpClone initiates a session and yields a session token.
	OpClone Op = "clone"
	// OpEval evaluates a code form in a namespace.
	OpEval Op = "eval"
	// OpLoadFile evaluates a whole file.
	OpLoadFile Op = "load-file"
	// OpUsingNS switches the current namespace.
	OpUsingNS Op = "using-ns"
	// OpNSList lists known namespaces.
	OpNSList Op = "ns-list"
	// OpInfo looks up symbol metadata.
	OpInfo Op = "info"
	// OpMacroexpand expands a macro form.
	OpMacroexpand Op = "macroexpand"
	// OpTranspile returns generated target-language source for a form.
	OpTranspile Op = "transpile"
	// OpFindDef locates a symbol definition.
	OpFindDef Op = "find-def"
	// OpInspectStart begins inspecting the value of a form.
	OpInspectStart Op = "inspect-start"
	// OpInspectNav navigates into an inspected value.
	OpInspectNav Op = "inspect-nav"
	// OpComplete returns completion candidates for a prefix.
	OpComplete Op = "complete"
	// OpProtocols lists protocols known to the peer.
	OpProtocols Op = "protocols"
	// OpClose politely ends the session.
	OpClose Op = "close"
)

// DefaultNamespace is the namespace a fresh connection starts in.
const DefaultNamespace = Namespace("user")
