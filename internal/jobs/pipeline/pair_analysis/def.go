package pair_analysis

import (
	"github.com/yungbote/nearby-backend/internal/clients/oracle"
	"github.com/yungbote/nearby-backend/internal/data/db"
	"github.com/yungbote/nearby-backend/internal/data/repos"
	"github.com/yungbote/nearby-backend/internal/jobs/payload"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
	"github.com/yungbote/nearby-backend/internal/realtime"
)

type Pipeline struct {
	log      *logger.Logger
	tx       db.TxRunner
	profiles repos.ProfileRepo
	blocks   repos.BlockRepo
	analyses repos.ConnectionAnalysisRepo
	oracle   oracle.Oracle
	events   realtime.Publisher
}

func New(
	baseLog *logger.Logger,
	tx db.TxRunner,
	profiles repos.ProfileRepo,
	blocks repos.BlockRepo,
	analyses repos.ConnectionAnalysisRepo,
	orc oracle.Oracle,
	events realtime.Publisher,
) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", string(payload.KindPairAnalysis)),
		tx:       tx,
		profiles: profiles,
		blocks:   blocks,
		analyses: analyses,
		oracle:   orc,
		events:   events,
	}
}

func (p *Pipeline) Type() string { return string(payload.KindPairAnalysis) }
