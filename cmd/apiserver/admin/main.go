package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"stayprivate/internal/config"
	"stayprivate/internal/kafka"
	"stayprivate/internal/logger"
	"stayprivate/internal/models"
	"stayprivate/internal/services"
	"stayprivate/internal/storage"
)

const timeLayout = "2006-01-02 15:04:05"

func usage() {
	fmt.Println("使用方法:")
	fmt.Println("  ./admin sync-friends <userID>    - 按已接受的好友请求修复用户的好友集合")
	fmt.Println("  ./admin show-user <userID>       - 显示用户信息和好友/拉黑集合")
	fmt.Println("  ./admin show-request <requestID> - 显示好友请求")
	fmt.Println("  ./admin disable-user <userID>    - 停用用户")
}

func main() {
	// 简单命令行参数解析
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}
	command, id := os.Args[1], os.Args[2]

	cfg, err := config.LoadConfig(os.Getenv("STAYPRIVATE_CONFIG"))
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	zlog := logger.New("warn", false)

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg, zlog)
	if err != nil {
		log.Fatalf("无法初始化存储: %v", err)
	}
	defer func() { _ = store.Close(ctx) }()

	// 执行指定的命令
	switch command {
	case "sync-friends":
		syncFriends(ctx, store, zlog, id)
	case "show-user":
		showUser(ctx, store, id)
	case "show-request":
		showRequest(ctx, store, id)
	case "disable-user":
		disableUser(ctx, store, id)
	default:
		usage()
		log.Fatalf("未知命令: %s", command)
	}
}

func syncFriends(ctx context.Context, store *storage.Store, zlog *zap.Logger, userID string) {
	// 事件只对在线的 API 服务器有意义，这里不发布
	rel := services.NewRelationshipService(store.Users, store.Requests, noopEvents{}, zlog)
	res, err := rel.SyncFriends(ctx, userID)
	if err != nil {
		log.Fatalf("同步好友失败: %v", err)
	}
	fmt.Printf("已同步 %d 个已接受的好友请求\n", res.Synced)
	fmt.Printf("当前好友 (%d): %s\n", len(res.Friends), strings.Join(res.Friends, ", "))
}

func showUser(ctx context.Context, store *storage.Store, userID string) {
	user, err := store.Users.GetByID(ctx, userID)
	if err != nil {
		log.Fatalf("查找用户失败: %v", err)
	}

	fmt.Printf("用户 %s 信息:\n", user.ID)
	fmt.Println("--------------------------------------")
	fmt.Printf("名字: %s\n", user.Name)
	fmt.Printf("邮箱: %s\n", user.Email)
	fmt.Printf("角色: %s\n", user.Role)
	fmt.Printf("是否启用: %v\n", user.IsActive)
	fmt.Printf("创建时间: %s\n", user.CreatedAt.Format(timeLayout))
	fmt.Printf("好友 (%d): %s\n", len(user.Friends), strings.Join(user.Friends, ", "))
	fmt.Printf("已拉黑 (%d): %s\n", len(user.BlockedUsers), strings.Join(user.BlockedUsers, ", "))

	for _, dir := range []models.RequestDirection{models.DirectionIncoming, models.DirectionOutgoing} {
		pending, err := store.Requests.ListPending(ctx, userID, dir)
		if err != nil {
			fmt.Printf("获取待处理请求失败: %v\n", err)
			continue
		}
		label := "收到的"
		if dir == models.DirectionOutgoing {
			label = "发出的"
		}
		fmt.Printf("%s待处理请求: %d\n", label, len(pending))
	}
}

func showRequest(ctx context.Context, store *storage.Store, requestID string) {
	request, err := store.Requests.GetByID(ctx, requestID)
	if err != nil {
		log.Fatalf("获取好友请求失败: %v", err)
	}

	fmt.Printf("好友请求 %s 信息:\n", request.ID)
	fmt.Println("--------------------------------------")
	fmt.Printf("发送者: %s\n", request.SenderID)
	fmt.Printf("接收者: %s\n", request.ReceiverID)
	fmt.Printf("状态: %s\n", request.Status)
	fmt.Printf("创建时间: %s\n", request.CreatedAt.Format(timeLayout))
	fmt.Printf("更新时间: %s\n", request.UpdatedAt.Format(timeLayout))

	if request.Status == models.FriendRequestStatusAccepted {
		for _, pair := range [][2]string{{request.SenderID, request.ReceiverID}, {request.ReceiverID, request.SenderID}} {
			user, err := store.Users.GetByID(ctx, pair[0])
			if err != nil {
				fmt.Printf("读取用户 %s 失败: %v\n", pair[0], err)
				continue
			}
			if !user.IsFriendOf(pair[1]) {
				fmt.Printf("不一致: %s 的好友集合缺少 %s，可运行 sync-friends 修复\n", pair[0], pair[1])
			}
		}
	}
}

func disableUser(ctx context.Context, store *storage.Store, userID string) {
	if err := store.Users.SetActive(ctx, userID, false); err != nil {
		log.Fatalf("停用用户失败: %v", err)
	}
	fmt.Printf("用户 %s 已停用\n", userID)
}

type noopEvents struct{}

func (noopEvents) Publish(context.Context, kafka.RelationshipEvent) {}
