package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"forgeline/anvil/pkg/inspection"
	"forgeline/anvil/pkg/rules"
	"forgeline/anvil/pkg/rules/engine"
)

// nodeDocument is the wire form of a node record.
type nodeDocument struct {
	UUID           string                 `json:"uuid"`
	Name           string                 `json:"name,omitempty"`
	Driver         string                 `json:"driver,omitempty"`
	ProvisionState string                 `json:"provision_state,omitempty"`
	ResourceClass  string                 `json:"resource_class,omitempty"`
	LastError      string                 `json:"last_error,omitempty"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
	Extra          map[string]interface{} `json:"extra,omitempty"`
	DriverInfo     map[string]interface{} `json:"driver_info,omitempty"`
	InstanceInfo   map[string]interface{} `json:"instance_info,omitempty"`
	Traits         []string               `json:"traits,omitempty"`
}

// portDocument is the wire form of a port record.
type portDocument struct {
	UUID                string                 `json:"uuid,omitempty"`
	Address             string                 `json:"address"`
	Name                string                 `json:"name,omitempty"`
	PhysicalNetwork     string                 `json:"physical_network,omitempty"`
	Extra               map[string]interface{} `json:"extra,omitempty"`
	LocalLinkConnection map[string]interface{} `json:"local_link_connection,omitempty"`
}

// applyRequest is one batch application request.
type applyRequest struct {
	Node       *nodeDocument          `json:"node"`
	Ports      []portDocument         `json:"ports,omitempty"`
	Inventory  map[string]interface{} `json:"inventory"`
	PluginData map[string]interface{} `json:"plugin_data,omitempty"`
	Phase      string                 `json:"phase,omitempty"`
}

// applyResponse is the outcome of a batch application.
type applyResponse struct {
	Node       *nodeDocument          `json:"node"`
	Ports      []portDocument         `json:"ports,omitempty"`
	PluginData map[string]interface{} `json:"plugin_data,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type applyHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func (h *applyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req applyRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Node == nil {
		writeError(w, http.StatusBadRequest, "node is required")
		return
	}
	if req.Node.UUID == "" {
		writeError(w, http.StatusBadRequest, "node.uuid is required")
		return
	}
	if req.Inventory == nil {
		writeError(w, http.StatusBadRequest, "inventory is required")
		return
	}
	if req.Phase != "" && !rules.KnownPhase(rules.Phase(req.Phase)) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown phase %q", req.Phase))
		return
	}

	task := buildTask(&req)
	pluginData, err := h.engine.Apply(r.Context(), task, req.Inventory, req.PluginData, rules.Phase(req.Phase))
	if err != nil {
		var ruleErr *engine.RuleError
		switch {
		case errors.As(err, &ruleErr):
			h.logger.Warn("batch application failed",
				"node_uuid", req.Node.UUID,
				"error", err,
			)
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("batch application error",
				"node_uuid", req.Node.UUID,
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	resp := applyResponse{
		Node:       nodeToDocument(task.Node),
		Ports:      portsToDocuments(task.Ports),
		PluginData: pluginData,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

// buildTask converts the request documents into a task. The node and
// ports carry no persistence hook: the mutated records travel back in
// the response instead.
func buildTask(req *applyRequest) *inspection.Task {
	node := inspection.NewNode()
	node.UUID = req.Node.UUID
	node.Name = req.Node.Name
	node.Driver = req.Node.Driver
	node.ProvisionState = req.Node.ProvisionState
	node.ResourceClass = req.Node.ResourceClass
	node.LastError = req.Node.LastError
	if req.Node.Properties != nil {
		node.Properties = req.Node.Properties
	}
	if req.Node.Extra != nil {
		node.Extra = req.Node.Extra
	}
	if req.Node.DriverInfo != nil {
		node.DriverInfo = req.Node.DriverInfo
	}
	if req.Node.InstanceInfo != nil {
		node.InstanceInfo = req.Node.InstanceInfo
	}
	node.Traits = req.Node.Traits

	ports := make([]*inspection.Port, 0, len(req.Ports))
	for _, doc := range req.Ports {
		port := inspection.NewPort(doc.Address)
		if doc.UUID != "" {
			port.UUID = doc.UUID
		}
		port.Name = doc.Name
		port.PhysicalNetwork = doc.PhysicalNetwork
		if doc.Extra != nil {
			port.Extra = doc.Extra
		}
		if doc.LocalLinkConnection != nil {
			port.LocalLinkConnection = doc.LocalLinkConnection
		}
		ports = append(ports, port)
	}

	return inspection.NewTask(node, ports...)
}

func nodeToDocument(node *inspection.Node) *nodeDocument {
	return &nodeDocument{
		UUID:           node.UUID,
		Name:           node.Name,
		Driver:         node.Driver,
		ProvisionState: node.ProvisionState,
		ResourceClass:  node.ResourceClass,
		LastError:      node.LastError,
		Properties:     node.Properties,
		Extra:          node.Extra,
		DriverInfo:     node.DriverInfo,
		InstanceInfo:   node.InstanceInfo,
		Traits:         node.Traits,
	}
}

func portsToDocuments(ports []*inspection.Port) []portDocument {
	docs := make([]portDocument, 0, len(ports))
	for _, port := range ports {
		docs = append(docs, portDocument{
			UUID:                port.UUID,
			Address:             port.Address,
			Name:                port.Name,
			PhysicalNetwork:     port.PhysicalNetwork,
			Extra:               port.Extra,
			LocalLinkConnection: port.LocalLinkConnection,
		})
	}
	return docs
}
