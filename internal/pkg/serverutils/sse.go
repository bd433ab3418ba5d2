package serverutils

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type sseDelta struct {
	Content string `json:"content"`
}

type sseChoice struct {
	Delta sseDelta `json:"delta"`
}

type sseChunk struct {
	Choices []sseChoice `json:"choices"`
}

// SetSSEHeaders prepares a response for an event stream.
func SetSSEHeaders(ctx *fiber.Ctx) {
	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")
}

func writeSSEData(w *bufio.Writer, data []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}

// WriteSSEContent writes one content delta in the OpenAI chunk shape.
func WriteSSEContent(w *bufio.Writer, content string) error {
	data, err := json.Marshal(sseChunk{Choices: []sseChoice{{Delta: sseDelta{Content: content}}}})
	if err != nil {
		return err
	}
	return writeSSEData(w, data)
}

func WriteSSEError(w *bufio.Writer, message string) error {
	data, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return err
	}
	return writeSSEData(w, data)
}

func WriteSSEDone(w *bufio.Writer) error {
	return writeSSEData(w, []byte("[DONE]"))
}
