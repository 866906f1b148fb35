package graph

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/lvdashuaibi/hotrank/config"
	"github.com/lvdashuaibi/hotrank/internal/model"
	"github.com/lvdashuaibi/hotrank/internal/service"
)

// GraphQLServer 只读查询服务器，写操作走REST接口
type GraphQLServer struct {
	schema  *graphql.Schema
	handler *relay.Handler
}

// 读取GraphQL Schema定义
const schemaString = `
type RsEvent {
  eventName: String!
  keyword: String!
  voteNum: Int!
  userId: Int!
}

type User {
  id: Int!
  userName: String!
  gender: String!
  email: String!
  phone: String!
  age: Int!
  voteNum: Int!
  createdAt: String!
}

type Query {
  # 查询榜单，start/end为1起始的闭区间，缺省返回完整榜单
  rankedList(start: Int, end: Int): [RsEvent!]!

  # 查询榜单指定位置的事件
  rsEvent(index: Int!): RsEvent!

  # 查询用户
  user(id: Int!): User!
}

schema {
  query: Query
}
`

// NewGraphQLServer 创建新的GraphQL服务器
func NewGraphQLServer(rankService *service.RankService, voteService *service.VoteService) *GraphQLServer {
	resolver := &Resolver{
		rankService: rankService,
		voteService: voteService,
	}

	schema := graphql.MustParseSchema(schemaString, resolver)
	handler := &relay.Handler{Schema: schema}

	return &GraphQLServer{
		schema:  schema,
		handler: handler,
	}
}

// Start 启动GraphQL服务器
func (s *GraphQLServer) Start(port int) error {
	mux := http.NewServeMux()
	mux.Handle(config.AppConfig.GraphQL.Path, s.handler)

	addr := fmt.Sprintf(":%d", port)
	log.Printf("GraphQL服务已启动，API端点: %s, 地址: http://localhost%s/",
		config.AppConfig.GraphQL.Path, addr)

	return http.ListenAndServe(addr, mux)
}

// Resolver GraphQL解析器
type Resolver struct {
	rankService *service.RankService
	voteService *service.VoteService
}

// RankedList 查询榜单
func (r *Resolver) RankedList(ctx context.Context, args struct {
	Start *int32
	End   *int32
}) ([]*EventViewResolver, error) {
	var start, end *int
	if args.Start != nil {
		v := int(*args.Start)
		start = &v
	}
	if args.End != nil {
		v := int(*args.End)
		end = &v
	}

	views, err := r.rankService.RankedList(ctx, start, end)
	if err != nil {
		return nil, err
	}

	resolvers := make([]*EventViewResolver, len(views))
	for i := range views {
		resolvers[i] = &EventViewResolver{view: views[i]}
	}
	return resolvers, nil
}

// RsEvent 查询榜单指定位置的事件
func (r *Resolver) RsEvent(ctx context.Context, args struct{ Index int32 }) (*EventViewResolver, error) {
	view, err := r.rankService.EventAt(ctx, int(args.Index))
	if err != nil {
		return nil, err
	}
	return &EventViewResolver{view: view}, nil
}

// User 查询用户
func (r *Resolver) User(ctx context.Context, args struct{ ID int32 }) (*UserResolver, error) {
	user, err := r.voteService.GetUser(ctx, int64(args.ID))
	if err != nil {
		return nil, err
	}
	return &UserResolver{user: user}, nil
}

// EventViewResolver 事件视图解析器
type EventViewResolver struct {
	view model.EventView
}

func (r *EventViewResolver) EventName() string {
	return r.view.EventName
}

func (r *EventViewResolver) Keyword() string {
	return r.view.Keyword
}

func (r *EventViewResolver) VoteNum() int32 {
	return int32(r.view.VoteNum)
}

func (r *EventViewResolver) UserID() int32 {
	return int32(r.view.UserID)
}

// UserResolver 用户解析器
type UserResolver struct {
	user *model.User
}

func (r *UserResolver) ID() int32 {
	return int32(r.user.ID)
}

func (r *UserResolver) UserName() string {
	return r.user.UserName
}

func (r *UserResolver) Gender() string {
	return r.user.Gender
}

func (r *UserResolver) Email() string {
	return r.user.Email
}

func (r *UserResolver) Phone() string {
	return r.user.Phone
}

func (r *UserResolver) Age() int32 {
	return int32(r.user.Age)
}

func (r *UserResolver) VoteNum() int32 {
	return int32(r.user.VoteNum)
}

func (r *UserResolver) CreatedAt() string {
	return r.user.CreatedAt.Format(time.RFC3339)
}
