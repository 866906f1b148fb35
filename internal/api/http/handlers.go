package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lvdashuaibi/hotrank/internal/model"
)

// getRankedList GET /rs/list?start=&end=
func (s *Server) getRankedList(c *gin.Context) {
	start, ok := optionalIntQuery(c, "start")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request param"})
		return
	}
	end, ok := optionalIntQuery(c, "end")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request param"})
		return
	}

	views, err := s.rankService.RankedList(c.Request.Context(), start, end)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, views)
}

// getEventAt GET /rs/:index
func (s *Server) getEventAt(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}

	view, err := s.rankService.EventAt(c.Request.Context(), index)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// postEvent POST /rs/event
func (s *Server) postEvent(c *gin.Context) {
	var request model.RsEventRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid param"})
		return
	}

	event, err := s.voteService.Submit(c.Request.Context(), &request)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// postVote POST /rs/vote/:id
func (s *Server) postVote(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid param"})
		return
	}

	var request model.VoteRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid param"})
		return
	}

	record, err := s.voteService.CastVote(c.Request.Context(), eventID, &request)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// postBuy POST /rs/buy/:id
func (s *Server) postBuy(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid param"})
		return
	}

	var request model.TradeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid param"})
		return
	}

	result, err := s.tradeService.Buy(c.Request.Context(), eventID, &request)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// getVotes GET /votes/:id 查询事件的投票流水
func (s *Server) getVotes(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid param"})
		return
	}

	records, err := s.voteService.VotesOf(c.Request.Context(), eventID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

// postUser POST /user
func (s *Server) postUser(c *gin.Context) {
	var request model.RegisterRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user"})
		return
	}

	user, err := s.voteService.Register(c.Request.Context(), &request)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// getUser GET /user/:id
func (s *Server) getUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid param"})
		return
	}

	user, err := s.voteService.GetUser(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// deleteUser DELETE /user/:id
func (s *Server) deleteUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid param"})
		return
	}

	if err := s.voteService.DeleteUser(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// optionalIntQuery 解析可选的整型query参数，缺失返回nil
func optionalIntQuery(c *gin.Context, name string) (*int, bool) {
	raw, exists := c.GetQuery(name)
	if !exists || raw == "" {
		return nil, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	return &value, true
}

// writeError 把领域错误翻译成HTTP响应
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidIndex):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
	case errors.Is(err, model.ErrInvalidParam):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request param"})
	case errors.Is(err, model.ErrInvalidRank):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rank"})
	case errors.Is(err, model.ErrBidTooLow):
		c.JSON(http.StatusBadRequest, gin.H{"error": "bid too low"})
	case errors.Is(err, model.ErrEventNotFound), errors.Is(err, model.ErrUserNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("请求处理失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
