package state

import "lendpool/crypto"

var (
	collateralPrefix = []byte("lend/coll/")
	debtPrefix       = []byte("lend/debt/")
	reservePrefix    = []byte("lend/resv/")
	assetPrefix      = []byte("lend/asset/")
	assetIndexKey    = []byte("lend/assets")
)

func positionKey(prefix []byte, user, asset crypto.Address) []byte {
	buf := make([]byte, 0, len(prefix)+40)
	buf = append(buf, prefix...)
	buf = append(buf, user.Bytes()...)
	buf = append(buf, asset.Bytes()...)
	return buf
}

func assetKey(prefix []byte, asset crypto.Address) []byte {
	buf := make([]byte, 0, len(prefix)+20)
	buf = append(buf, prefix...)
	buf = append(buf, asset.Bytes()...)
	return buf
}
