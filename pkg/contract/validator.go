package contract

import "fmt"

// NewChatRecord 以固定角色顺序组装三轮消息。
func NewChatRecord(system, user, assistant string) ChatRecord {
	return ChatRecord{Messages: []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
		{Role: RoleAssistant, Content: assistant},
	}}
}

// ValidateChatRecord 校验消息条数与角色顺序（纯函数，无 I/O）。
func ValidateChatRecord(rec ChatRecord) error {
	if len(rec.Messages) != len(ChatRoles) {
		return fmt.Errorf("%w: chat record has %d messages, want %d", ErrInvariantViolation, len(rec.Messages), len(ChatRoles))
	}
	for i, m := range rec.Messages {
		if m.Role != ChatRoles[i] {
			return fmt.Errorf("%w: message %d role %q, want %q", ErrInvariantViolation, i, m.Role, ChatRoles[i])
		}
	}
	return nil
}
