package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"smc-predictor/internal/model"
	"smc-predictor/internal/service"
)

// WsMessage 是行情推送的通用响应结构
type WsMessage struct {
	Arg struct {
		Channel string `json:"channel"`
		Symbol  string `json:"symbol"`
	} `json:"arg"`
	Data  json.RawMessage `json:"data"` // 延迟解析
	Event string          `json:"event"`
}

// WsTrade 是单条成交/报价，字段均为字符串
type WsTrade struct {
	Timestamp string `json:"ts"` // 毫秒字符串
	Price     string `json:"px"`
	Size      string `json:"sz"`
}

// Connector 维护一条 WebSocket 连接，把推送转成 model.Tick
type Connector struct {
	wsURL       string
	channel     string
	symbols     map[string]bool
	tickChannel chan model.Tick
	dialer      *websocket.Dialer
	backoff     time.Duration
	maxBackoff  time.Duration
	logger      *zap.Logger
}

// NewConnector 创建连接器，channel 为订阅的频道名 (例如 "trades")
func NewConnector(wsURL, channel string, symbols []string) *Connector {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[s] = true
	}
	service.Logger.Info("Connector initialized", zap.Strings("Symbols", symbols), zap.String("Channel", channel))

	return &Connector{
		wsURL:       wsURL,
		channel:     channel,
		symbols:     set,
		tickChannel: make(chan model.Tick, 2048),
		dialer:      websocket.DefaultDialer,
		backoff:     time.Second,
		maxBackoff:  30 * time.Second,
		logger:      service.Logger,
	}
}

// Start 连接并持续读取，断线后按指数退避重连，直到 ctx 结束。
// 返回时关闭 Ticks 通道。
func (c *Connector) Start(ctx context.Context) error {
	defer close(c.tickChannel)

	wait := c.backoff
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("WS session ended, reconnecting", zap.Error(err), zap.Duration("Backoff", wait))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		wait *= 2
		if wait > c.maxBackoff {
			wait = c.maxBackoff
		}
	}
}

func (c *Connector) runOnce(ctx context.Context) error {
	c.logger.Info("Connecting to tick stream", zap.String("URL", c.wsURL))
	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.wsURL, err)
	}
	defer conn.Close()

	// ctx 结束时关闭连接，让 ReadMessage 立即返回
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteJSON(c.subscribeMessage()); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.logger.Info("Subscribed to tick stream", zap.Int("Symbols", len(c.symbols)))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		ticks, err := parseMessage(message)
		if err != nil {
			c.logger.Debug("Skipping malformed WS message", zap.Error(err))
			continue
		}
		for _, t := range ticks {
			if !c.symbols[t.Symbol] {
				continue
			}
			select {
			case c.tickChannel <- t:
			default:
				c.logger.Warn("Tick channel full! Dropping tick for", zap.String("Symbol", t.Symbol))
			}
		}
	}
}

func (c *Connector) subscribeMessage() map[string]interface{} {
	args := make([]map[string]string, 0, len(c.symbols))
	for symbol := range c.symbols {
		args = append(args, map[string]string{"channel": c.channel, "symbol": symbol})
	}
	return map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}
}

var errEmptyMessage = errors.New("empty message")

// parseMessage 解析一条推送。事件消息 (订阅确认等) 返回空切片。
// 无法解析价格的单条记录会被跳过。
func parseMessage(raw []byte) ([]model.Tick, error) {
	var msg WsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	if msg.Event != "" {
		return nil, nil
	}
	if msg.Arg.Symbol == "" || len(msg.Data) == 0 {
		return nil, errEmptyMessage
	}

	var trades []WsTrade
	if err := json.Unmarshal(msg.Data, &trades); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}

	ticks := make([]model.Tick, 0, len(trades))
	for _, tr := range trades {
		price, err := service.StringToFloat(tr.Price)
		if err != nil || price <= 0 {
			continue
		}
		ts, err := service.StringToInt64(tr.Timestamp)
		if err != nil {
			continue
		}
		// 报价快照没有成交量
		volume, _ := service.StringToFloat(tr.Size)
		ticks = append(ticks, model.Tick{
			Symbol:    msg.Arg.Symbol,
			Timestamp: ts,
			Price:     price,
			Volume:    volume,
		})
	}
	return ticks, nil
}

// Ticks 返回只读的 Tick 通道
func (c *Connector) Ticks() <-chan model.Tick {
	return c.tickChannel
}
