package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lvdashuaibi/hotrank/config"
	"github.com/lvdashuaibi/hotrank/internal/api/graph"
	apihttp "github.com/lvdashuaibi/hotrank/internal/api/http"
	intkafka "github.com/lvdashuaibi/hotrank/internal/kafka"
	"github.com/lvdashuaibi/hotrank/internal/lock"
	"github.com/lvdashuaibi/hotrank/internal/repository"
	"github.com/lvdashuaibi/hotrank/internal/service"
)

var (
	configPath = flag.String("config", "config/config.yaml", "配置文件路径")
	instanceID = flag.Int("instance", 1, "实例ID，用于区分多个实例")
)

func main() {
	// 解析命令行参数
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("配置加载成功，当前实例ID: %d", *instanceID)

	// 创建数据库连接
	mysqlRepo, err := repository.NewMySQLRepository()
	if err != nil {
		log.Fatalf("初始化MySQL仓库失败: %v", err)
	}
	defer mysqlRepo.Close()
	log.Printf("MySQL仓库初始化成功")

	// 创建Redis连接
	redisRepo, err := repository.NewRedisRepository()
	if err != nil {
		log.Fatalf("初始化Redis仓库失败: %v", err)
	}
	defer redisRepo.Close()
	log.Printf("Redis仓库初始化成功")

	// 创建分布式锁，默认etcd，可配置切换为Redlock
	rankLock, err := newLock(cfg.Lock.Provider)
	if err != nil {
		log.Fatalf("初始化分布式锁失败: %v", err)
	}
	defer rankLock.Close()
	log.Printf("分布式锁初始化成功，提供方: %s", cfg.Lock.Provider)

	// 创建Kafka生产者
	producer, err := intkafka.NewProducer()
	if err != nil {
		log.Fatalf("初始化Kafka生产者失败: %v", err)
	}
	defer producer.Close()
	log.Printf("Kafka生产者初始化成功")

	// 创建Kafka消费者
	consumer, err := intkafka.NewConsumer()
	if err != nil {
		log.Fatalf("初始化Kafka消费者失败: %v", err)
	}
	defer consumer.Stop()
	log.Printf("Kafka消费者初始化成功")

	// 创建业务服务
	rankService := service.NewRankService(mysqlRepo, redisRepo)
	voteService := service.NewVoteService(mysqlRepo, mysqlRepo, mysqlRepo, redisRepo, producer)
	tradeService := service.NewTradeService(mysqlRepo, mysqlRepo, redisRepo, rankLock, producer)
	log.Printf("业务服务初始化成功")

	// 启动Kafka消费者，消费变更事件清理缓存
	consumer.StartConsuming(voteService.HandleChangeEvent)
	log.Printf("Kafka消费者已启动")

	// 计算端口，支持多实例
	serverPort := cfg.Server.Port + *instanceID - 1

	// 启动REST服务器(异步)
	restServer := apihttp.NewServer(rankService, voteService, tradeService)
	go func() {
		if err := restServer.Start(serverPort); err != nil {
			log.Fatalf("启动REST服务器失败: %v", err)
		}
	}()

	// 启动GraphQL查询服务器(异步)
	graphqlServer := graph.NewGraphQLServer(rankService, voteService)
	go func() {
		if err := graphqlServer.Start(serverPort + 1000); err != nil {
			log.Fatalf("启动GraphQL服务器失败: %v", err)
		}
	}()

	log.Printf("热搜榜系统 (实例 %d) 已启动，REST地址: http://localhost:%d", *instanceID, serverPort)

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务...")
}

func newLock(provider string) (lock.Lock, error) {
	if provider == "redlock" {
		return lock.NewRedLock()
	}
	return lock.NewETCDLock()
}
