package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abhisek/dsatutor/internal/attachment"
	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/recommend"
	"github.com/abhisek/dsatutor/internal/store"
)

func (s *Server) createUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return fiber.NewError(http.StatusBadRequest, "a valid email is required")
	}
	if strings.TrimSpace(req.Username) == "" {
		req.Username = strings.SplitN(req.Email, "@", 2)[0]
	}

	u, err := s.users.CreateUser(c.UserContext(), req.Email, req.Username, req.Roles)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toUserResponse(u))
}

func (s *Server) findUser(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return fiber.NewError(http.StatusBadRequest, "email query parameter is required")
	}
	u, err := s.users.GetUserByEmail(c.UserContext(), email)
	if err != nil {
		return err
	}
	return c.JSON(toUserResponse(u))
}

func (s *Server) getUser(c *fiber.Ctx) error {
	u, err := s.users.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(toUserResponse(u))
}

func (s *Server) postTurn(c *fiber.Ctx) error {
	userID := c.Params("id")
	text, atts, err := readTurn(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" && len(atts) == 0 {
		return fiber.NewError(http.StatusBadRequest, "text or files are required")
	}

	release, err := s.lock.Acquire(c.UserContext(), userID)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.TurnTimeout)
	defer cancel()

	reply, err := s.tutor.ProcessTurn(ctx, userID, text, atts)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			s.log.Warn("turn timed out", zap.String("user_id", userID), zap.Duration("timeout", s.cfg.TurnTimeout))
			return c.Status(http.StatusGatewayTimeout).JSON(ErrorResponse{
				Code:    CodeTimeout,
				Message: "The turn took too long and was discarded.",
				Status:  http.StatusGatewayTimeout,
			})
		}
		return err
	}
	return c.JSON(toReplyResponse(reply))
}

// readTurn accepts either a JSON body or a multipart form with a text
// field and files.
func readTurn(c *fiber.Ctx) (string, []attachment.Attachment, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		var req TurnRequest
		if err := c.BodyParser(&req); err != nil {
			return "", nil, fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
		return req.Text, nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return "", nil, fiber.NewError(http.StatusBadRequest, "invalid multipart form")
	}
	var text string
	if vs := form.Value["text"]; len(vs) > 0 {
		text = vs[0]
	}

	var atts []attachment.Attachment
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			return "", nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return "", nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}

		mt := fh.Header.Get(fiber.HeaderContentType)
		if mt == "" || mt == fiber.MIMEOctetStream {
			mt = attachment.DetectMIME(fh.Filename, data)
		}
		atts = append(atts, attachment.Attachment{Name: fh.Filename, MIMEType: mt, Data: data})
	}
	return text, atts, nil
}

func (s *Server) getHistory(c *fiber.Ctx) error {
	userID := c.Params("id")
	if _, err := s.users.GetUser(c.UserContext(), userID); err != nil {
		return err
	}
	msgs, err := s.users.LoadHistory(c.UserContext(), userID, store.ChatID(userID))
	if err != nil {
		return err
	}
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageResponse{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			Images:    len(m.Images()),
			Timestamp: m.Timestamp,
		})
	}
	return c.JSON(fiber.Map{"messages": out})
}

func (s *Server) clearHistory(c *fiber.Ctx) error {
	userID := c.Params("id")
	release, err := s.lock.Acquire(c.UserContext(), userID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.tutor.ClearHistory(c.UserContext(), userID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) getProfile(c *fiber.Ctx) error {
	p, err := s.tutor.Profile(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	topics := p.Topics
	if topics == nil {
		topics = learner.Topics{}
	}
	return c.JSON(ProfileResponse{
		User:           toUserResponse(p.User),
		Level:          string(p.Level),
		Topics:         topics,
		LastAnalysisAt: p.LastAnalysisAt,
		Recommendation: p.Recommendation,
		Confidence:     p.Confidence,
	})
}

func (s *Server) getRecommendations(c *fiber.Ctx) error {
	recs, err := s.tutor.Recommendations(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	return c.JSON(fiber.Map{"recommendations": recs})
}
