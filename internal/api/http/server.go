package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/lvdashuaibi/hotrank/internal/service"
)

// Server REST服务器，路由与状态码的薄适配层，
// 业务判定全部在service层完成
type Server struct {
	engine       *gin.Engine
	rankService  *service.RankService
	voteService  *service.VoteService
	tradeService *service.TradeService
}

func NewServer(
	rankService *service.RankService,
	voteService *service.VoteService,
	tradeService *service.TradeService,
) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), gin.Logger())

	s := &Server{
		engine:       engine,
		rankService:  rankService,
		voteService:  voteService,
		tradeService: tradeService,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/rs/list", s.getRankedList)
	s.engine.GET("/rs/:index", s.getEventAt)
	s.engine.POST("/rs/event", s.postEvent)
	s.engine.POST("/rs/vote/:id", s.postVote)
	s.engine.POST("/rs/buy/:id", s.postBuy)

	s.engine.GET("/votes/:id", s.getVotes)

	s.engine.POST("/user", s.postUser)
	s.engine.GET("/user/:id", s.getUser)
	s.engine.DELETE("/user/:id", s.deleteUser)
}

// Engine 暴露底层引擎，测试时直接挂到httptest上
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start 启动HTTP服务器
func (s *Server) Start(port int) error {
	return s.engine.Run(fmt.Sprintf(":%d", port))
}
