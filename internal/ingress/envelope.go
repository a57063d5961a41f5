package ingress

// Wire shapes for the channel's webhook envelope. Only the fields the
// gateway reads are declared.

type envelope struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID      string   `json:"id"`
	Changes []change `json:"changes"`
}

type change struct {
	Field string      `json:"field"`
	Value changeValue `json:"value"`
}

type changeValue struct {
	MessagingProduct string         `json:"messaging_product"`
	Contacts         []contact      `json:"contacts"`
	Messages         []inboundEvent `json:"messages"`
	Statuses         []statusEvent  `json:"statuses"`
}

type contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type inboundEvent struct {
	ID        string     `json:"id"`
	From      string     `json:"from"`
	Timestamp string     `json:"timestamp"`
	Type      string     `json:"type"`
	Text      *textBody  `json:"text,omitempty"`
	Audio     *audioBody `json:"audio,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type audioBody struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
}

type statusEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
