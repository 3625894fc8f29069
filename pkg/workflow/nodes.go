package workflow

import (
	"fmt"
)

// Node is the parsed form of one workflow definition node. Definitions store
// nodes as loosely-typed jsonb maps; they are parsed once here instead of
// inspected ad hoc per event.
type Node interface {
	nodeType() string
}

// TriggerNode is node 0 of a definition: the event name the workflow starts
// on.
type TriggerNode struct {
	EventName string
}

func (TriggerNode) nodeType() string { return "trigger" }

// ActionNode is an action step executed by the external runner. This engine
// never interprets it beyond counting steps.
type ActionNode struct {
	Kind   string
	Config map[string]interface{}
}

func (ActionNode) nodeType() string { return "action" }

// ParseNodes converts raw definition nodes into tagged variants. Any
// malformed node fails the whole definition so a half-parsed node list can
// never be matched.
func ParseNodes(raw []map[string]interface{}) ([]Node, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("definition has no nodes")
	}

	nodes := make([]Node, 0, len(raw))
	for i, entry := range raw {
		kind, _ := entry["type"].(string)
		switch kind {
		case "trigger":
			eventName, _ := entry["event_name"].(string)
			if eventName == "" {
				return nil, fmt.Errorf("node %d: trigger node missing event_name", i)
			}
			nodes = append(nodes, TriggerNode{EventName: eventName})
		case "action":
			actionKind, _ := entry["kind"].(string)
			if actionKind == "" {
				return nil, fmt.Errorf("node %d: action node missing kind", i)
			}
			config, _ := entry["config"].(map[string]interface{})
			nodes = append(nodes, ActionNode{Kind: actionKind, Config: config})
		default:
			return nil, fmt.Errorf("node %d: unknown node type %q", i, kind)
		}
	}

	return nodes, nil
}

// TriggerEventName returns the event name of node 0 when it is a trigger
// node.
func TriggerEventName(nodes []Node) (string, bool) {
	if len(nodes) == 0 {
		return "", false
	}
	trigger, ok := nodes[0].(TriggerNode)
	if !ok {
		return "", false
	}
	return trigger.EventName, true
}
