package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"dgenerate/core/runtime"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBuffer       = 128
)

// handleReceiptsWS streams committed receipts. The optional "type" query
// parameter keeps only receipts carrying an event of that type, e.g.
// /ws?type=reward.paid.
func (s *Server) handleReceiptsWS(w http.ResponseWriter, r *http.Request) {
	filter := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := conn.CloseRead(r.Context())
	if err := s.streamReceipts(ctx, conn, clientSource(r), filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			s.logger.Warn("receipt stream failed", slog.Any("error", err))
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamReceipts(ctx context.Context, conn *websocket.Conn, source, filter string) error {
	receipts, cancel := s.node.Subscribe("ws:"+source, wsBuffer)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case receipt, ok := <-receipts:
			if !ok {
				return nil
			}
			if !matchesFilter(receipt, filter) {
				continue
			}
			if err := writeReceipt(ctx, conn, receipt); err != nil {
				return err
			}
		}
	}
}

func matchesFilter(receipt *runtime.Receipt, filter string) bool {
	if filter == "" {
		return true
	}
	for _, evt := range receipt.Events {
		if evt != nil && evt.Type == filter {
			return true
		}
	}
	return false
}

func writeReceipt(ctx context.Context, conn *websocket.Conn, receipt *runtime.Receipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
