package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// handleDeadline bounds the dialogue work for one sender's batch of updates.
const handleDeadline = 2 * time.Minute

func (c *Connector) Publish(ctx context.Context, externalID, text string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(externalID), 10, 64)
	if err != nil {
		return fmt.Errorf("parse telegram external id: %w", err)
	}
	message := strings.TrimSpace(text)
	if message == "" {
		return nil
	}
	return c.sendMessage(ctx, chatID, message)
}

func (c *Connector) Start(ctx context.Context) error {
	if c.reporter != nil {
		c.reporter.Starting(componentName, "starting")
	}
	if c.token == "" {
		c.disable(ctx, "token missing")
		return nil
	}
	if c.inbound == nil {
		c.disable(ctx, "inbound handler missing")
		return nil
	}

	if c.reporter != nil {
		c.reporter.Beat(componentName, "polling updates")
	}
	c.logger.Info("connector started", "api_base", c.apiBase)
	if username, err := c.fetchBotUsername(ctx); err == nil {
		c.botUsername = username
		if c.botUsername != "" {
			c.logger.Info("telegram bot identity loaded", "username", c.botUsername)
		}
	} else {
		c.logger.Warn("telegram bot username lookup failed", "error", err)
	}
	if c.commandSync {
		if err := c.syncCommands(ctx); err != nil {
			c.logger.Warn("telegram command sync failed", "error", err)
		} else {
			c.logger.Info("telegram commands synced")
		}
	}

	for {
		if ctx.Err() != nil {
			c.stop()
			return nil
		}
		if err := c.pollOnce(ctx); err != nil && ctx.Err() == nil {
			if c.reporter != nil {
				c.reporter.Degrade(componentName, "poll failed", err)
			}
			c.logger.Error("poll failed", "error", err)
			select {
			case <-ctx.Done():
				c.stop()
				return nil
			case <-time.After(1500 * time.Millisecond):
			}
		} else if c.reporter != nil {
			c.reporter.Beat(componentName, "poll cycle ok")
		}
	}
}

func (c *Connector) disable(ctx context.Context, reason string) {
	if c.reporter != nil {
		c.reporter.Disabled(componentName, reason)
	}
	c.logger.Info("connector disabled", "reason", reason)
	<-ctx.Done()
}

func (c *Connector) stop() {
	if c.reporter != nil {
		c.reporter.Stopped(componentName, "stopped")
	}
	c.logger.Info("connector stopped")
}

func (c *Connector) pollOnce(ctx context.Context) error {
	var updates []telegramUpdate
	method := fmt.Sprintf("getUpdates?timeout=%d&offset=%d", c.pollSeconds, c.offset)
	if err := c.callAPI(ctx, method, nil, &updates); err != nil {
		return err
	}

	// Messages are grouped per sender so one slow conversation never holds up
	// another, while each sender's messages keep their order.
	batches := map[int64][]telegramMessage{}
	senders := []int64{}
	for _, update := range updates {
		if update.UpdateID >= c.offset {
			c.offset = update.UpdateID + 1
		}
		if update.Message == nil {
			continue
		}
		sender := update.Message.From.ID
		if _, ok := batches[sender]; !ok {
			senders = append(senders, sender)
		}
		batches[sender] = append(batches[sender], *update.Message)
	}
	for _, sender := range senders {
		c.dispatch(batches[sender])
	}
	return nil
}

func (c *Connector) handleAsync(batch []telegramMessage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handleDeadline)
		defer cancel()
		c.handleBatch(ctx, batch)
	}()
}

func (c *Connector) handleBatch(ctx context.Context, batch []telegramMessage) {
	for _, message := range batch {
		if err := c.handleMessage(ctx, message); err != nil {
			c.logger.Error("handle message failed", "error", err, "chat_id", message.Chat.ID, "message_id", message.MessageID)
		}
	}
}
