package app

import (
	"github.com/carousell/ct-go/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"

	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/internal/lock"
	"github.com/ndtrung-ct/signal-reactor/internal/repo/mongodb"
	"github.com/ndtrung-ct/signal-reactor/internal/scheduler"
	"github.com/ndtrung-ct/signal-reactor/internal/server"
	"github.com/ndtrung-ct/signal-reactor/internal/usecase"
)

func Invoke(funcs ...any) *fx.App {
	log := logger.MustNamed("app")
	conf := config.MustLoad()
	log.Debugw("config loaded", log.Reflect("config", conf))
	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{
				Logger: log.Unwrap().Desugar(),
			}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Provide(
			newMongoDB,
			newTransportAdapter,
			newProviderRouter,
			newScheduler,
			newSweeper,
			newAnalyzer,
			newInstanceLock,

			server.NewHandler,

			usecase.NewEventUsecase,
			usecase.NewReactionDispatcher,
			usecase.NewEmojiSelector,

			mongodb.NewMessageRepository,
			mongodb.NewMarkerRepository,
			mongodb.NewReactionRuleRepository,
			mongodb.NewGroupRepository,
			mongodb.NewAIJobRepository,
			mongodb.NewInstanceLockRepository,
		),
		fx.Supply(conf),
		fx.Invoke(funcs...),
	)
}

func newScheduler(jobRepo mongodb.AIJobRepository, analyzer scheduler.Analyzer, conf *config.Config) (scheduler.Scheduler, error) {
	return scheduler.NewScheduler(jobRepo, analyzer, conf.Scheduler)
}

func newSweeper(jobRepo mongodb.AIJobRepository, conf *config.Config) scheduler.Sweeper {
	return scheduler.NewSweeper(jobRepo, conf.Scheduler)
}

func newInstanceLock(repo mongodb.InstanceLockRepository, conf *config.Config, sd fx.Shutdowner) lock.InstanceLock {
	return lock.NewInstanceLock(repo, conf.Lock, sd)
}
