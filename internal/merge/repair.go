package merge

import (
	"github.com/roach88/galactic/internal/ir"
)

// legacyFlowContext is the single context field Flow records carried before
// per-endpoint contexts existed.
const legacyFlowContext = "flow_context"

var flowEnds = [...]struct{ port, context string }{
	{"start_port", "start_port_context"},
	{"end_port", "end_port_context"},
}

func needsFlowRepair(rec ir.Record) bool {
	if rec.String(legacyFlowContext) == "" {
		return false
	}
	return rec.String("start_port_context") == "" || rec.String("end_port_context") == ""
}

// repairFlow rewrites a legacy Flow record with per-endpoint contexts. An
// endpoint whose port belongs to the flow context itself gets that context;
// otherwise the context is the one usage of the port's product inside the
// flow context. Returns false when an endpoint cannot be inferred.
func (e *Engine) repairFlow(rec ir.Record) (ir.Record, bool) {
	out := rec.Clone()
	flowCtx := rec.String(legacyFlowContext)
	for _, end := range flowEnds {
		if out.String(end.context) != "" {
			continue
		}
		ctx, ok := e.inferContext(flowCtx, out.String(end.port))
		if !ok {
			return ir.Record{}, false
		}
		out.Set(end.context, ir.IRString(ctx))
	}
	out.Delete(legacyFlowContext)
	return out, true
}

func (e *Engine) inferContext(flowCtx, port string) (string, bool) {
	p, ok := e.graph.Get(port)
	if !ok {
		return "", false
	}
	owner := p.Ref("of_product")
	if owner == "" {
		return "", false
	}
	if owner == flowCtx {
		return flowCtx, true
	}
	var match string
	for _, acuOID := range e.graph.ComponentsOf(flowCtx) {
		acu, ok := e.graph.Get(acuOID)
		if !ok || acu.Ref("component") != owner {
			continue
		}
		if match != "" {
			// two usages of the same product: ambiguous
			return "", false
		}
		match = acuOID
	}
	return match, match != ""
}
