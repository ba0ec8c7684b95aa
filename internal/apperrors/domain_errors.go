package apperrors

var (
	ErrUnauthenticated      = Unauthenticated("not authenticated")
	ErrMissingRecipient     = InvalidArg("recipientId is required")
	ErrSelfConversation     = InvalidArg("cannot start a conversation with yourself")
	ErrMissingConversation  = InvalidArg("conversationId is required")
	ErrEmptyMessage         = InvalidArg("message must contain content, imageUrl or videoUrl")
	ErrConversationNotFound = NotFound("conversation not found")
	ErrNotParticipant       = Forbidden("not a participant of this conversation")
)
