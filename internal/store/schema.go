// Package store persists sessions as a folder of interchange files: canonical
// Mermaid text, Unicode text exports, and JSON sidecars that carry stable-id
// fingerprint maps and fields Mermaid cannot represent.
package store

import (
	"encoding/json"
	"strings"

	"github.com/gowebpki/jcs"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/nereid-dev/nereid/pkg/schema"
)

// SessionMetaFile is the session manifest written last on save.
const SessionMetaFile = "nereid-session.meta.json"

// SessionMeta is the on-disk session manifest. Unknown fields are ignored on
// read for forward compatibility. A nil WalkthroughIDs (field absent) makes
// the loader fall back to a directory scan; a present list is authoritative.
type SessionMeta struct {
	SessionID           string               `json:"session_id"`
	Diagrams            []SessionMetaDiagram `json:"diagrams"`
	ActiveDiagramID     string               `json:"active_diagram_id,omitempty"`
	ActiveWalkthroughID string               `json:"active_walkthrough_id,omitempty"`
	WalkthroughIDs      *[]string            `json:"walkthrough_ids,omitempty"`
	XRefs               []SessionXRef        `json:"xrefs"`
}

// SessionMetaDiagram locates one diagram's files, all session-relative.
type SessionMetaDiagram struct {
	DiagramID string `json:"diagram_id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	MmdPath   string `json:"mmd_path"`
	MetaPath  string `json:"meta_path"`
	Rev       uint64 `json:"rev"`
}

// SessionXRef is the persisted form of one cross-reference; status is
// recomputed on load.
type SessionXRef struct {
	XRefID string `json:"xref_id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Kind   string `json:"kind"`
	Label  string `json:"label,omitempty"`
}

// StableIDMap reconciles Mermaid-visible identifiers back to stable ids.
type StableIDMap struct {
	ByName      map[string]string `json:"by_name,omitempty"`
	ByMermaidID map[string]string `json:"by_mermaid_id,omitempty"`
}

// MessageMeta fingerprints one sequence message. List order is the local
// ordering hint: duplicates are matched first-fit.
type MessageMeta struct {
	Fingerprint string `json:"fingerprint"`
	MessageID   string `json:"message_id"`
}

// EdgeMeta fingerprints one flow edge and carries its non-interchange style.
type EdgeMeta struct {
	Fingerprint string `json:"fingerprint"`
	EdgeID      string `json:"edge_id"`
	Style       string `json:"style,omitempty"`
}

// ObjectExtra carries per-object fields Mermaid cannot represent.
type ObjectExtra struct {
	Note string `json:"note,omitempty"`
}

// DiagramMeta is the per-diagram sidecar.
type DiagramMeta struct {
	StableIDMap  StableIDMap            `json:"stable_id_map"`
	Messages     []MessageMeta          `json:"messages,omitempty"`
	Edges        []EdgeMeta             `json:"edges,omitempty"`
	Nodes        map[string]ObjectExtra `json:"nodes,omitempty"`
	Participants map[string]ObjectExtra `json:"participants,omitempty"`
}

// WalkthroughDoc is the on-disk walkthrough file.
type WalkthroughDoc struct {
	WalkthroughID string      `json:"walkthrough_id"`
	Title         string      `json:"title"`
	Rev           uint64      `json:"rev"`
	Nodes         []WtNodeDoc `json:"nodes"`
	Edges         []WtEdgeDoc `json:"edges"`
}

// WtNodeDoc is one persisted walkthrough node.
type WtNodeDoc struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	BodyMD string   `json:"body_md,omitempty"`
	Refs   []string `json:"refs,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Status string   `json:"status,omitempty"`
}

// WtEdgeDoc is one persisted walkthrough edge.
type WtEdgeDoc struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Kind  string `json:"kind,omitempty"`
	Label string `json:"label,omitempty"`
}

// fingerprintSep joins fingerprint tuple fields. Fields are not escaped; text
// validation rejects only newlines, so a field may itself contain it.
const fingerprintSep = "\x1f"

// MessageFingerprint builds the sidecar fingerprint of a sequence message.
func MessageFingerprint(fromIdent, toIdent, kind, text string) string {
	return strings.Join([]string{fromIdent, toIdent, kind, text}, fingerprintSep)
}

// EdgeFingerprint builds the sidecar fingerprint of a flow edge.
func EdgeFingerprint(fromMermaidID, toMermaidID, label string) string {
	return strings.Join([]string{fromMermaidID, toMermaidID, label}, fingerprintSep)
}

// Embedded JSON Schemas for the persisted documents. Known fields are typed;
// additional properties stay allowed for forward compatibility.
const sessionMetaSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://nereid.dev/schemas/session-meta.json",
  "type": "object",
  "required": ["session_id", "diagrams"],
  "properties": {
    "session_id": { "type": "string", "minLength": 1 },
    "diagrams": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["diagram_id", "name", "kind", "mmd_path", "meta_path", "rev"],
        "properties": {
          "diagram_id": { "type": "string", "minLength": 1 },
          "name": { "type": "string" },
          "kind": { "type": "string", "enum": ["sequence", "flowchart"] },
          "mmd_path": { "type": "string", "minLength": 1 },
          "meta_path": { "type": "string", "minLength": 1 },
          "rev": { "type": "integer", "minimum": 0 }
        }
      }
    },
    "active_diagram_id": { "type": "string" },
    "active_walkthrough_id": { "type": "string" },
    "walkthrough_ids": { "type": "array", "items": { "type": "string" } },
    "xrefs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["xref_id", "from", "to", "kind"],
        "properties": {
          "xref_id": { "type": "string", "minLength": 1 },
          "from": { "type": "string", "minLength": 1 },
          "to": { "type": "string", "minLength": 1 },
          "kind": { "type": "string" },
          "label": { "type": "string" }
        }
      }
    }
  }
}`

const diagramMetaSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://nereid.dev/schemas/diagram-meta.json",
  "type": "object",
  "properties": {
    "stable_id_map": {
      "type": "object",
      "properties": {
        "by_name": { "type": "object", "additionalProperties": { "type": "string" } },
        "by_mermaid_id": { "type": "object", "additionalProperties": { "type": "string" } }
      }
    },
    "messages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["fingerprint", "message_id"],
        "properties": {
          "fingerprint": { "type": "string" },
          "message_id": { "type": "string", "minLength": 1 }
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["fingerprint", "edge_id"],
        "properties": {
          "fingerprint": { "type": "string" },
          "edge_id": { "type": "string", "minLength": 1 },
          "style": { "type": "string" }
        }
      }
    },
    "nodes": { "type": "object" },
    "participants": { "type": "object" }
  }
}`

const walkthroughSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://nereid.dev/schemas/walkthrough.json",
  "type": "object",
  "required": ["walkthrough_id", "title"],
  "properties": {
    "walkthrough_id": { "type": "string", "minLength": 1 },
    "title": { "type": "string" },
    "rev": { "type": "integer", "minimum": 0 },
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": { "type": "string", "minLength": 1 },
          "title": { "type": "string" },
          "body_md": { "type": "string" },
          "refs": { "type": "array", "items": { "type": "string" } },
          "tags": { "type": "array", "items": { "type": "string" } },
          "status": { "type": "string" }
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to"],
        "properties": {
          "from": { "type": "string", "minLength": 1 },
          "to": { "type": "string", "minLength": 1 },
          "kind": { "type": "string" },
          "label": { "type": "string" }
        }
      }
    }
  }
}`

var docSchemas = func() map[string]*jsonschema.Schema {
	compile := func(id, source string) *jsonschema.Schema {
		c := jsonschema.NewCompiler()
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
		if err != nil {
			panic(err)
		}
		if err := c.AddResource(id, doc); err != nil {
			panic(err)
		}
		sch, err := c.Compile(id)
		if err != nil {
			panic(err)
		}
		return sch
	}
	return map[string]*jsonschema.Schema{
		"session-meta": compile("https://nereid.dev/schemas/session-meta.json", sessionMetaSchemaJSON),
		"diagram-meta": compile("https://nereid.dev/schemas/diagram-meta.json", diagramMetaSchemaJSON),
		"walkthrough":  compile("https://nereid.dev/schemas/walkthrough.json", walkthroughSchemaJSON),
	}
}()

// decodeValidated validates raw JSON against the named embedded schema, then
// decodes it into out. Unknown fields survive validation and are ignored by
// the decode.
func decodeValidated(name, file string, raw []byte, out any) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeSchemaInvalid, "%s is not valid JSON", file).WithCause(err)
	}
	if err := docSchemas[name].Validate(doc); err != nil {
		return schema.NewErrorf(schema.ErrCodeSchemaInvalid, "%s failed schema validation: %s", file, err.Error()).WithCause(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return schema.NewErrorf(schema.ErrCodeSchemaInvalid, "%s could not be decoded", file).WithCause(err)
	}
	return nil
}

// canonicalJSON marshals v and canonicalizes the bytes (RFC 8785) so saved
// documents are byte-deterministic.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeInternal, "marshal failed").WithCause(err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeInternal, "canonicalization failed").WithCause(err)
	}
	return canonical, nil
}
