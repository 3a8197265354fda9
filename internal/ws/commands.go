package ws

import "encoding/json"

// Command is the discriminated envelope every inbound WS frame decodes
// into.
type Command struct {
	Type string `json:"type"`

	ChatID       string `json:"chat_id,omitempty"`
	Name         string `json:"name,omitempty"`
	Content      string `json:"content,omitempty"`
	ModelID      string `json:"model_id,omitempty"`
	StartingHead string `json:"starting_head,omitempty"`

	MessageID string `json:"message_id,omitempty"`

	ChildID      string `json:"child_id,omitempty"`
	ManifestName string `json:"manifest_name,omitempty"`
}

const (
	cmdListChats            = "list_chats"
	cmdCreateChat           = "create_chat"
	cmdSwitchChat           = "switch_chat"
	cmdRenameChat           = "rename_chat"
	cmdDeleteChat           = "delete_chat"
	cmdSendMessage          = "send_message"
	cmdGenerateLLMResponse  = "generate_llm_response"
	cmdListModels           = "list_models"
	cmdGetMessage           = "get_message"
	cmdGetHead              = "get_head"
	cmdStartChild           = "start_child"
	cmdStopChild            = "stop_child"
	cmdListAvailableChildren = "list_available_children"
)

func decodeCommand(raw []byte) (Command, error) {
	var cmd Command
	err := json.Unmarshal(raw, &cmd)
	return cmd, err
}
