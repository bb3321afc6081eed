package bgp

// KeepAliveMessage carries no body.
type KeepAliveMessage struct{}

func (KeepAliveMessage) MessageType() MessageType { return MessageTypeKeepAlive }

func (KeepAliveMessage) bodyLen(EncodeContext) int { return 0 }

func (KeepAliveMessage) encodeBody(EncodeContext) ([]byte, error) { return nil, nil }
