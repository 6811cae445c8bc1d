package mocks

//go:generate mockery --name TouchpointStore --srcpkg github.com/meridian-lab/project-meridian/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name ReportStore --srcpkg github.com/meridian-lab/project-meridian/internal/attribution --output ./attribution --outpkg attributionmocks --with-expecter
