package ledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract method names.
const (
	methodRegister             = "register"
	methodAddSkill             = "addSkill"
	methodVouch                = "vouch"
	methodGetBuilder           = "getBuilder"
	methodGetBuilderByUsername = "getBuilderByUsername"
	methodGetSkillsWithVouches = "getSkillsWithVouches"
	methodCheckVouch           = "checkVouch"
	methodGetBuilderCount      = "getBuilderCount"
	methodGetBuilders          = "getBuilders"
	methodTotalVouches         = "totalVouches"
	methodTotalSkillsClaimed   = "totalSkillsClaimed"
	methodBuilders             = "builders"
	methodRegisterFee          = "registerFee"
	methodAddSkillFee          = "addSkillFee"
	methodVouchFee             = "vouchFee"
)

// ContractABI is the JSON ABI of the VouchBase registry contract.
const ContractABI = `[
{"type":"function","name":"register","stateMutability":"payable","inputs":[{"name":"username","type":"string"},{"name":"github","type":"string"},{"name":"twitter","type":"string"},{"name":"initialSkills","type":"uint8[]"}],"outputs":[]},
{"type":"function","name":"addSkill","stateMutability":"payable","inputs":[{"name":"skillId","type":"uint8"}],"outputs":[]},
{"type":"function","name":"vouch","stateMutability":"payable","inputs":[{"name":"builder","type":"address"},{"name":"skillId","type":"uint8"}],"outputs":[]},
{"type":"function","name":"getBuilder","stateMutability":"view","inputs":[{"name":"wallet","type":"address"}],"outputs":[{"name":"","type":"string"},{"name":"","type":"string"},{"name":"","type":"string"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint8[]"}]},
{"type":"function","name":"getBuilderByUsername","stateMutability":"view","inputs":[{"name":"username","type":"string"}],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"getSkillsWithVouches","stateMutability":"view","inputs":[{"name":"builder","type":"address"}],"outputs":[{"name":"","type":"uint8[]"},{"name":"","type":"uint256[]"}]},
{"type":"function","name":"checkVouch","stateMutability":"view","inputs":[{"name":"voucher","type":"address"},{"name":"builder","type":"address"},{"name":"skillId","type":"uint8"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getBuilderCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getBuilders","stateMutability":"view","inputs":[{"name":"offset","type":"uint256"},{"name":"limit","type":"uint256"}],"outputs":[{"name":"","type":"address[]"}]},
{"type":"function","name":"totalVouches","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"totalSkillsClaimed","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"builders","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"address"},{"name":"","type":"string"},{"name":"","type":"string"},{"name":"","type":"string"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"bool"}]},
{"type":"function","name":"registerFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"addSkillFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"vouchFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// ParseABI parses ContractABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(ContractABI))
}
